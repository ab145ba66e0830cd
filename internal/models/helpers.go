package models

import (
	"strings"

	"github.com/google/uuid"
)

func NewSessionID() string {
	return uuid.New().String()
}

func ValidSessionID(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func CalculatePayout(stake, multiplier float64) float64 {
	return stake * multiplier
}
