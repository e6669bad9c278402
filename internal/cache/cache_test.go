package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/poisignal/internal/model"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "short_node-1_nl", Key(KindShort, "node-1", "NL", ""))
	assert.Equal(t, "full_node-1_en_history-art", Key(KindFull, "node-1", "en", "history-art"))
	// pure function of its inputs
	assert.Equal(t, Key("arrival", "x", "en", "v"), Key("arrival", "x", "en", "v"))
}

func TestKeyFor(t *testing.T) {
	poi := model.Poi{Name: "Stadhuis (Hasselt)", Interests: []string{"History"}}
	assert.Equal(t, "short_city-hall_en_history", KeyFor(KindShort, poi, "en"))

	poi = model.Poi{ID: "w123", Name: "Stadhuis", Language: "nl"}
	assert.Equal(t, "full_w123_nl", KeyFor(KindFull, poi, "en"))
}

func TestKindPrefix(t *testing.T) {
	assert.Equal(t, "short_", KindPrefix("short_w123_nl"))
	assert.Equal(t, "plain", KindPrefix("plain"))
}
