package keyvaluedb

import (
	"encoding/binary"
	"errors"
	"reflect"
)

var (
	errInvalidKey   = errors.New("invalid key")
	errValueIsNil   = errors.New("value is nil")
	errInvalidCodec = errors.New("codec must have both marshal and unmarshal func")
)

// CheckKey returns error for empty key, backends don't support it.
func CheckKey(key []byte) error {
	if len(key) == 0 {
		return errInvalidKey
	}
	return nil
}

// CheckValue rejects nil and nil pointer values.
func CheckValue(val any) error {
	if val == nil {
		return errValueIsNil
	}
	if rv := reflect.ValueOf(val); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return errValueIsNil
	}
	return nil
}

func CheckKeyAndValue(key []byte, val any) error {
	return errors.Join(CheckKey(key), CheckValue(val))
}

/*
Key builds DB key from prefix and big-endian encoded number so that
binary-alphabetical order of keys with the same prefix follows the numbers.
*/
func Key(prefix string, n uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(prefix), n)
}

// KeyNumber returns the number part of the key built with Key.
func KeyNumber(prefix string, key []byte) (uint64, bool) {
	if len(key) != len(prefix)+8 || string(key[:len(prefix)]) != prefix {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(prefix):]), true
}
