package storetest

import "github.com/charlesng35/staffhub/pkg/crypto"

func hashOf(raw string) string {
	return crypto.HashToken(raw)
}
