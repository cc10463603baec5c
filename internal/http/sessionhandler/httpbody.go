package sessionhandler

import "quizsync/internal/domain"

type ScopeBody struct {
	Kind    domain.ScopeKind `json:"kind"    binding:"required,oneof=channel game-room" example:"game-room"`
	Channel string           `json:"channel" binding:"required"                        example:"2"`
	Room    string           `json:"room"    binding:"required_if=Kind game-room"      example:"7"`
} // @name ScopeRequest

type ChatBody struct {
	Message string `json:"message" binding:"required,max=500" example:"hello"`
} // @name ChatRequest

type CommandResponse struct {
	Sent bool `json:"sent"`
} // @name CommandResponse

type HealthResponse struct {
	Status string `json:"status"`
	Scope  string `json:"scope"`
} // @name HealthResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
