package model

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the row has none. Called from the
// BeforeCreate hooks so primary keys do not depend on a database default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
