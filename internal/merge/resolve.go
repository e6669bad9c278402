package merge

import (
	"github.com/ppiankov/poisignal/internal/model"
)

const (
	resolveThreshold    = 0.4
	resolveImageScore   = 0.9
	confirmedConfidence = 0.3
)

var fallbackText = map[string][2]string{
	"en": {"Location confirmed. No detailed description.", "No description available."},
	"nl": {"Locatie bevestigd. Geen gedetailleerde beschrijving.", "Geen beschrijving beschikbaar."},
}

// Resolve picks the single most trusted description. Signals without content
// are skipped when choosing the winner. Images come only from signals scoring
// at least 0.9.
func Resolve(signals []model.ScoredSignal, language string) model.Resolution {
	texts, ok := fallbackText[language]
	if !ok {
		texts = fallbackText["en"]
	}

	ranked := rank(signals)
	if len(ranked) == 0 {
		return model.Resolution{
			Description: texts[1],
			Source:      model.SourceSystem,
		}
	}

	for _, s := range ranked {
		if s.Content == "" {
			continue
		}
		if s.Score <= resolveThreshold {
			break
		}

		var images []string
		for _, r := range ranked {
			if r.Score < resolveImageScore {
				continue
			}
			for _, img := range r.AllImages() {
				images = appendUnique(images, img, 0)
			}
		}
		return model.Resolution{
			Description: s.Content,
			Link:        s.Link,
			Images:      images,
			Source:      s.Source,
			Confidence:  s.Score,
		}
	}

	return model.Resolution{
		Description: texts[0],
		Source:      model.SourceSystem,
		Confidence:  confirmedConfidence,
	}
}
