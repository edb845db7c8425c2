package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"rewards_webapp/internal/domain"
)

var (
	ErrInvalidInitData = errors.New("неверные данные авторизации telegram")
	ErrInitDataExpired = errors.New("данные авторизации устарели")
)

// максимальный возраст auth_date
const initDataMaxAge = time.Hour

// TelegramIdentity - то, что мы берем из init_data после проверки подписи
type TelegramIdentity struct {
	Profile    domain.Profile
	StartParam string
}

type telegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url"`
}

// ValidateTelegramInitData проверяет HMAC Telegram WebApp init_data и свежесть auth_date
func ValidateTelegramInitData(initData, botToken string, now time.Time) (url.Values, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInvalidInitData
	}
	values.Del("hash")

	provided, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(initDataHash(values, botToken), provided) {
		return nil, ErrInvalidInitData
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	// небольшая рассинхронизация часов допустима
	age := now.Sub(time.Unix(authDate, 0))
	if age > initDataMaxAge || age < -5*time.Minute {
		return nil, ErrInitDataExpired
	}

	return values, nil
}

// initDataHash считает подпись по алгоритму WebApp: ключ HMAC("WebAppData", token)
func initDataHash(values url.Values, botToken string) []byte {
	var dataCheck []string
	for k, v := range values {
		dataCheck = append(dataCheck, k+"="+strings.Join(v, ""))
	}
	sort.Strings(dataCheck)

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))
	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(strings.Join(dataCheck, "\n")))
	return h.Sum(nil)
}

// ParseTelegramIdentity проверяет init_data и достает профиль пользователя
func ParseTelegramIdentity(initData, botToken string, now time.Time) (*TelegramIdentity, error) {
	values, err := ValidateTelegramInitData(initData, botToken, now)
	if err != nil {
		return nil, err
	}

	var tu telegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &tu); err != nil || tu.ID == 0 {
		return nil, ErrInvalidInitData
	}

	name := strings.TrimSpace(tu.FirstName + " " + tu.LastName)
	return &TelegramIdentity{
		Profile: domain.Profile{
			ID:          tu.ID,
			Username:    tu.Username,
			DisplayName: name,
			PhotoURL:    tu.PhotoURL,
		},
		StartParam: values.Get("start_param"),
	}, nil
}
