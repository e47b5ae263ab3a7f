package config

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("config: invalid value")

var envKeyReplacer = strings.NewReplacer(".", "_")
