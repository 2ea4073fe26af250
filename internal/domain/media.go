package domain

import (
	"errors"
	"time"
)

var ErrMediaNotFound = errors.New("media not found")

// Media is the metadata row for one stored attachment. Bytes live on the
// media store keyed by Filename; the engine only ever reads them.
type Media struct {
	ID           string
	UserID       string
	Filename     string
	OriginalName string
	CreatedAt    time.Time
}
