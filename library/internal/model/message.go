package model

import (
	"encoding/base64"
	"encoding/json"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is a one-time status line shown on the page after a redirect.
type Message struct {
	Level Level  `json:"l"`
	Text  string `json:"t"`
}

func Success(text string) Message { return Message{Level: LevelSuccess, Text: text} }
func Info(text string) Message    { return Message{Level: LevelInfo, Text: text} }
func Warning(text string) Message { return Message{Level: LevelWarning, Text: text} }
func Error(text string) Message   { return Message{Level: LevelError, Text: text} }

// EncodeMessages packs messages into a cookie-safe string.
func EncodeMessages(msgs []Message) (string, error) {
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeMessages(s string) ([]Message, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
