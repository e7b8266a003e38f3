package accounts

import (
	"strings"

	"github.com/cleared-dev/journalrag/internal/model"
)

// KeywordMap maps lowercase description tokens to account codes. Later
// entries overwrite earlier ones sharing a token. It is a direct lookup
// independent of the embedding index and is never reconciled with it.
type KeywordMap map[string]string

// NewKeywordMap builds the map from entries in order.
func NewKeywordMap(entries []model.COAEntry) KeywordMap {
	km := make(KeywordMap)
	for _, e := range entries {
		for _, tok := range strings.Fields(strings.ToLower(e.Description)) {
			km[tok] = e.Code
		}
	}
	return km
}

// Lookup returns the code of the first token of text found in the map.
func (km KeywordMap) Lookup(text string) (string, bool) {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if code, ok := km[tok]; ok {
			return code, true
		}
	}
	return "", false
}
