package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and UTC audit timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity returns an entity with a fresh ID stamped now
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch marks the entity as modified now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
