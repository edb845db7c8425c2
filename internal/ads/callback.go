package ads

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrBadSignature      = errors.New("неверная подпись callback")
	ErrStaleCallback     = errors.New("callback устарел")
	ErrCallbackMissing   = errors.New("секрет callback не настроен")
	ErrDuplicateCallback = errors.New("callback уже обработан")
)

// MaxCallbackSkew - допустимое расхождение ts callback с нашим временем
const MaxCallbackSkew = 5 * time.Minute

// ts принимается в [now-skew, now+skew], столько и помним использованные callback
const callbackReplayWindow = 2 * MaxCallbackSkew

// Sign считает подпись callback рекламной сети: hex(HMAC-SHA256(secret, "user_id:ts"))
func Sign(secret string, userID, ts int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCallback проверяет подпись и свежесть callback
func VerifyCallback(secret string, userID, ts int64, sig string, now time.Time) error {
	if secret == "" {
		return ErrCallbackMissing
	}
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	expected, _ := hex.DecodeString(Sign(secret, userID, ts))
	if !hmac.Equal(provided, expected) {
		return ErrBadSignature
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew > MaxCallbackSkew || skew < -MaxCallbackSkew {
		return ErrStaleCallback
	}
	return nil
}
