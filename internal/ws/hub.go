package ws

// Hub routes session frames to the consumers of each view. Views are a
// closed set, so every room exists from the start and is never dropped.
type Hub struct {
	rooms map[View]*room
}

func NewHub() *Hub {
	h := &Hub{rooms: make(map[View]*room, len(views))}
	for _, v := range views {
		h.rooms[v] = newRoom(v)
	}
	return h
}

// Broadcast is called by Feed once per snapshot and view. It reports how
// many consumers received msg.
func (h *Hub) Broadcast(view View, msg []byte) int {
	if r, ok := h.rooms[view]; ok {
		return r.broadcast(msg)
	}
	return 0
}

// Join ignores views outside the known set; Handle rejects those earlier.
func (h *Hub) Join(view View, c *clientConn) {
	if r, ok := h.rooms[view]; ok {
		r.add(c)
	}
}

func (h *Hub) Leave(view View, c *clientConn) {
	if r, ok := h.rooms[view]; ok {
		r.remove(c)
	}
}

// Consumers reports how many connections follow view.
func (h *Hub) Consumers(view View) int {
	if r, ok := h.rooms[view]; ok {
		return r.size()
	}
	return 0
}
