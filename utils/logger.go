package utils

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Log levels. Only LevelWarn and LevelError reach the admin channel.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// maxFieldLength is Discord's limit for an embed field value.
const maxFieldLength = 1024

var levelColors = map[string]int{
	LevelInfo:  0x00ff00,
	LevelWarn:  0xffff00,
	LevelError: 0xff0000,
}

var (
	mu        sync.RWMutex
	session   *discordgo.Session
	channelID string
)

// InitLogger mirrors warnings and errors to an admin channel through s.
// An empty channel ID keeps logging local.
func InitLogger(s *discordgo.Session, adminChannelID string) {
	mu.Lock()
	defer mu.Unlock()
	session = s
	channelID = adminChannelID
	if channelID == "" {
		log.Println("logging.admin_channel_id is not set; logs stay local.")
	}
}

// CloseLogger stops mirroring, typically right before the session closes.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()
	session = nil
}

// Log writes one structured line to the process log and mirrors it to the
// admin channel when the level calls for it.
func Log(level, module, operation, details string) {
	log.Printf("[%s] Module: %s, Operation: %s, Details: %s", level, module, operation, details)

	mu.RLock()
	s, ch := session, channelID
	mu.RUnlock()
	if s == nil || ch == "" || level == LevelInfo {
		return
	}

	if _, err := s.ChannelMessageSendEmbed(ch, logEmbed(level, module, operation, details, time.Now())); err != nil {
		log.Printf("Error sending log message to Discord: %v", err)
	}
}

func logEmbed(level, module, operation, details string, at time.Time) *discordgo.MessageEmbed {
	color, ok := levelColors[level]
	if !ok {
		color = levelColors[LevelInfo]
	}
	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", level),
		Color:     color,
		Timestamp: at.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Module", Value: module, Inline: true},
			{Name: "Operation", Value: operation, Inline: true},
			{Name: "Details", Value: truncate(details, maxFieldLength)},
		},
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func Info(module, operation, details string)  { Log(LevelInfo, module, operation, details) }
func Warn(module, operation, details string)  { Log(LevelWarn, module, operation, details) }
func Error(module, operation, details string) { Log(LevelError, module, operation, details) }
