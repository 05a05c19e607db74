// Package repository traduce filas del gateway a tipos de dominio del chat.
package repository

import "agency-chat/internal/store"

// ErrNotFound se devuelve cuando la fila buscada no existe.
var ErrNotFound = store.ErrNotFound
