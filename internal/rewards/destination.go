package rewards

import (
	"strings"
	"unicode"

	"github.com/xssnick/tonutils-go/address"
)

// Способы вывода
const (
	MethodTON        = "ton"
	MethodUSDTTRC20  = "usdt_trc20"
	MethodBinancePay = "binance_pay"
)

// DefaultMethods - способы вывода по умолчанию
var DefaultMethods = []string{MethodTON, MethodUSDTTRC20, MethodBinancePay}

const maxAddressLen = 128

// ValidateDestination проверяет способ и адрес перед списанием
func ValidateDestination(method, addr string, allowed []string) error {
	known := false
	for _, m := range allowed {
		if m == method {
			known = true
			break
		}
	}
	if !known {
		return ErrUnknownMethod
	}

	addr = strings.TrimSpace(addr)
	if addr == "" || len(addr) > maxAddressLen || strings.IndexFunc(addr, unicode.IsSpace) >= 0 {
		return ErrInvalidDestination
	}

	switch method {
	case MethodTON:
		// user-friendly (EQ.../UQ...) или raw 0:hex
		if _, err := address.ParseAddr(addr); err != nil {
			if _, err := address.ParseRawAddr(addr); err != nil {
				return ErrInvalidDestination
			}
		}
	case MethodUSDTTRC20:
		// base58 адрес TRON
		if len(addr) != 34 || addr[0] != 'T' {
			return ErrInvalidDestination
		}
	case MethodBinancePay:
		// Pay ID - только цифры
		for _, r := range addr {
			if r < '0' || r > '9' {
				return ErrInvalidDestination
			}
		}
	}
	return nil
}
