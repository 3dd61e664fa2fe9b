package service

import (
	"time"

	"gymbook/internal/domain"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() domain.Clock { return systemClock{} }
