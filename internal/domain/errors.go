package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrSettingNotFound = errors.New("setting not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidLogin    = errors.New("invalid username or password")
	ErrInvalidSettings = errors.New("invalid settings")
)
