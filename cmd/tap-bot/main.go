package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type BotConfig struct {
	PlayerID   string  `json:"playerId"`
	Strategy   string  `json:"strategy"`
	BatchSize  int     `json:"batchSize,omitempty"`
	Batches    int     `json:"batches,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

type BotState struct {
	Config      BotConfig
	AccessToken string
	Coins       int64
	Energy      int64
	Earned      int64
	Rejected    int
}

type GameStateResponse struct {
	PlayerID          string  `json:"playerId"`
	Coins             int64   `json:"coins"`
	Energy            int64   `json:"energy"`
	MaxEnergy         int64   `json:"maxEnergy"`
	Level             int     `json:"level"`
	CurrentMultiplier float64 `json:"currentMultiplier"`
}

type ClickRequest struct {
	Clicks     int     `json:"clicks"`
	Timestamps []int64 `json:"timestamps,omitempty"`
}

type ClickResponse struct {
	Success           bool    `json:"success"`
	Coins             int64   `json:"coins"`
	Energy            int64   `json:"energy"`
	TotalTaps         int64   `json:"total_taps"`
	Earned            int64   `json:"earned"`
	CurrentMultiplier float64 `json:"currentMultiplier"`
}

type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func main() {
	if !botsEnabled() {
		logInfo("bots disabled")
		return
	}

	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/")
	if baseURL == "" {
		logError("API_BASE_URL is required")
		os.Exit(1)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logError("JWT_SECRET is required")
		os.Exit(1)
	}
	serviceKey := os.Getenv("SERVICE_KEY")

	bots, err := loadBots()
	if err != nil {
		logError(fmt.Sprintf("failed to load bots: %v", err))
		os.Exit(1)
	}
	if len(bots) == 0 {
		logInfo("no bots configured")
		return
	}

	minDelay := parseEnvInt("BOT_BATCH_DELAY_MIN_MS", 300)
	maxDelay := parseEnvInt("BOT_BATCH_DELAY_MAX_MS", 900)
	defaultBatches := parseEnvInt("BOT_BATCHES_PER_RUN", 20)
	tapInterval := parseEnvInt("BOT_TAP_INTERVAL_MS", 80)

	states := make([]*BotState, 0, len(bots))
	for _, bot := range bots {
		if bot.BatchSize <= 0 {
			bot.BatchSize = 5
		}
		if bot.Batches <= 0 {
			bot.Batches = defaultBatches
		}
		states = append(states, &BotState{Config: bot})
	}
	shuffle(states)

	client := &http.Client{Timeout: 15 * time.Second}

	for _, bot := range states {
		token, err := mintToken(secret, bot.Config.PlayerID)
		if err != nil {
			logError(fmt.Sprintf("token mint failed for %s: %v", bot.Config.PlayerID, err))
			continue
		}
		bot.AccessToken = token

		state, err := fetchGameState(client, baseURL, bot)
		if err != nil {
			logError(fmt.Sprintf("state fetch failed for %s: %v", bot.Config.PlayerID, err))
			continue
		}
		bot.Coins = state.Coins
		bot.Energy = state.Energy

		if bot.Config.Strategy == "boosted" && serviceKey != "" {
			if err := activateBoost(client, baseURL, serviceKey, bot); err != nil {
				logError(fmt.Sprintf("boost activation failed for %s: %v", bot.Config.PlayerID, err))
			}
		}

		for i := 0; i < bot.Config.Batches; i++ {
			interval := tapInterval
			if bot.Config.Strategy == "frantic" {
				// below the server's pacing floor; expected to be rejected
				interval = 10
			}
			result, err := sendBatch(client, baseURL, bot, bot.Config.BatchSize, interval)
			if err != nil {
				bot.Rejected++
				logError(fmt.Sprintf("%s batch %d rejected: %v", bot.Config.PlayerID, i+1, err))
				if strings.Contains(err.Error(), "insufficient_energy") {
					break
				}
			} else {
				bot.Coins = result.Coins
				bot.Energy = result.Energy
				bot.Earned += result.Earned
			}
			sleepJitter(minDelay, maxDelay)
		}

		logInfo(fmt.Sprintf("%s done: coins=%d energy=%d earned=%d rejected=%d",
			bot.Config.PlayerID, bot.Coins, bot.Energy, bot.Earned, bot.Rejected))
	}
}

func botsEnabled() bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv("BOTS_ENABLED")))
	if value == "" {
		return true
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

func loadBots() ([]BotConfig, error) {
	if raw := strings.TrimSpace(os.Getenv("BOT_LIST")); raw != "" {
		var bots []BotConfig
		if err := json.Unmarshal([]byte(raw), &bots); err != nil {
			return nil, err
		}
		return bots, nil
	}
	if raw := strings.TrimSpace(os.Getenv("BOT_LIST_PATH")); raw != "" {
		path := filepath.Clean(raw)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var bots []BotConfig
		if err := json.Unmarshal(data, &bots); err != nil {
			return nil, err
		}
		return bots, nil
	}
	if raw := strings.TrimSpace(os.Getenv("BOT_PLAYERS")); raw != "" {
		var bots []BotConfig
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				bots = append(bots, BotConfig{PlayerID: id, Strategy: "steady"})
			}
		}
		return bots, nil
	}
	return nil, nil
}

func mintToken(secret string, playerID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	return token.SignedString([]byte(secret))
}

func fetchGameState(client *http.Client, baseURL string, bot *BotState) (*GameStateResponse, error) {
	req, _ := http.NewRequest(http.MethodGet, baseURL+"/game/state", nil)
	req.Header.Set("Authorization", "Bearer "+bot.AccessToken)
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, responseError(res)
	}
	var response GameStateResponse
	if err := decodeJSON(res.Body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// sendBatch submits clicks stamped as if tapped intervalMs apart, ending now.
func sendBatch(client *http.Client, baseURL string, bot *BotState, clicks int, intervalMs int) (*ClickResponse, error) {
	now := time.Now().UnixMilli()
	timestamps := make([]int64, clicks)
	for i := range timestamps {
		timestamps[i] = now - int64((clicks-1-i)*intervalMs)
	}

	body, _ := json.Marshal(ClickRequest{Clicks: clicks, Timestamps: timestamps})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/game/click", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bot.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, responseError(res)
	}
	var response ClickResponse
	if err := decodeJSON(res.Body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func activateBoost(client *http.Client, baseURL string, serviceKey string, bot *BotState) error {
	multiplier := bot.Config.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}
	payload := map[string]any{
		"playerId":        bot.Config.PlayerID,
		"type":            "coins_multiplier",
		"multiplier":      multiplier,
		"durationSeconds": 60,
	}
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/game/boost/activate", bytes.NewReader(body))
	req.Header.Set("X-Service-Key", serviceKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	return nil
}

func responseError(res *http.Response) error {
	var response ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err := json.Unmarshal(data, &response); err != nil || response.Error == "" {
		return fmt.Errorf("status %d", res.StatusCode)
	}
	if response.Reason != "" {
		return errors.New(response.Error + ": " + response.Reason)
	}
	return errors.New(response.Error)
}

func decodeJSON(reader io.Reader, target interface{}) error {
	decoder := json.NewDecoder(reader)
	return decoder.Decode(target)
}

func sleepJitter(minMs int, maxMs int) {
	if minMs <= 0 {
		return
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	jitter := rand.Intn(maxMs-minMs+1) + minMs
	time.Sleep(time.Duration(jitter) * time.Millisecond)
}

func shuffle(states []*BotState) {
	rand.Shuffle(len(states), func(i, j int) {
		states[i], states[j] = states[j], states[i]
	})
}

func parseEnvInt(key string, fallback int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

func logInfo(message string) {
	fmt.Printf("[INFO] %s %s\n", time.Now().Format(time.RFC3339), message)
}

func logError(message string) {
	fmt.Printf("[ERROR] %s %s\n", time.Now().Format(time.RFC3339), message)
}
