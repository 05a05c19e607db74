package domain

// Admin representa al operador autenticado que usa la consola.
type Admin struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}
