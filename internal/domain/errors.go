package domain

import "errors"

var (
	// ErrSessionNotFound indicates the session is not in the live store
	ErrSessionNotFound = errors.New("сессия чата не найдена")
	// ErrSessionTerminal indicates a mutation attempt on a finished session
	ErrSessionTerminal = errors.New("сессия чата уже завершена")
	// ErrAgentNotFound indicates the agent is not registered in the live registry
	ErrAgentNotFound = errors.New("оператор не найден")
	// ErrAgentUnavailable indicates the agent cannot take another session
	ErrAgentUnavailable = errors.New("оператор недоступен или занят")
	// ErrAlreadyAssigned indicates a manual assignment on a session that has an agent
	ErrAlreadyAssigned = errors.New("сессии уже назначен оператор")
	// ErrSessionNotAssigned indicates a transfer attempt on an unassigned session
	ErrSessionNotAssigned = errors.New("сессии не назначен оператор")
)
