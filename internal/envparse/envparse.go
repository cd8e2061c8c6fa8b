package envparse

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"
)

func PositiveDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("duration must not be negative")
	}
	return d, nil
}

func NonNegativeNumber(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("number must not be negative")
	}
	return n, nil
}

func ByteSlice(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(value)
}

func MailAddress(value string) (string, error) {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", fmt.Errorf("invalid mail address: %w", err)
	}
	return addr.Address, nil
}
