package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

const commonsFilePath = "https://commons.wikimedia.org/wiki/Special:FilePath/"

// Wikidata resolves a POI name to a canonical entity. It never fails the
// caller: every error is logged and yields a nil entity.
type Wikidata struct {
	http     *HTTP
	apiURL   string
	timeout  time.Duration
	language string
	logger   *zap.Logger
}

func NewWikidata(h *HTTP, cfg model.WikidataConfig, language string, logger *zap.Logger) *Wikidata {
	return &Wikidata{
		http:     h,
		apiURL:   cfg.APIURL,
		timeout:  cfg.Timeout,
		language: language,
		logger:   logging.Or(logger),
	}
}

type wbSearchResponse struct {
	Search []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"search"`
}

type wbValue struct {
	Value string `json:"value"`
}

type wbEntity struct {
	ID      string               `json:"id"`
	Labels  map[string]wbValue   `json:"labels"`
	Aliases map[string][]wbValue `json:"aliases"`
	Claims  map[string][]struct {
		Mainsnak struct {
			Datavalue struct {
				Value json.RawMessage `json:"value"`
			} `json:"datavalue"`
		} `json:"mainsnak"`
	} `json:"claims"`
	Sitelinks map[string]struct {
		Title string `json:"title"`
	} `json:"sitelinks"`
}

type wbEntitiesResponse struct {
	Entities map[string]wbEntity `json:"entities"`
}

// Resolve returns the entity best matching name, or nil
func (w *Wikidata) Resolve(ctx context.Context, name, lang string) *model.CanonicalEntity {
	if lang == "" {
		lang = w.language
	}
	if lang == "" {
		lang = "en"
	}

	id, err := w.searchEntity(ctx, name, lang)
	if err != nil {
		w.logger.Debug("wikidata: search failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	if id == "" {
		return nil
	}

	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", id)
	params.Set("props", "labels|aliases|claims|sitelinks")
	params.Set("languages", lang+"|en")
	params.Set("format", "json")

	var res wbEntitiesResponse
	if err := w.http.GetJSON(ctx, model.SourceWikidata, w.apiURL+"?"+params.Encode(), w.timeout, &res); err != nil {
		w.logger.Debug("wikidata: entity fetch failed", zap.String("id", id), zap.Error(err))
		return nil
	}
	ent, ok := res.Entities[id]
	if !ok {
		return nil
	}
	return toCanonical(ent, id, lang)
}

func (w *Wikidata) searchEntity(ctx context.Context, name, lang string) (string, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", normalize.CleanName(name))
	params.Set("language", lang)
	params.Set("uselang", lang)
	params.Set("type", "item")
	params.Set("limit", "5")
	params.Set("format", "json")

	var res wbSearchResponse
	if err := w.http.GetJSON(ctx, model.SourceWikidata, w.apiURL+"?"+params.Encode(), w.timeout, &res); err != nil {
		return "", err
	}
	if len(res.Search) == 0 {
		return "", nil
	}

	target := normalize.PoiName(name)
	for _, hit := range res.Search {
		if normalize.PoiName(hit.Label) == target {
			return hit.ID, nil
		}
	}
	return res.Search[0].ID, nil
}

func toCanonical(ent wbEntity, id, lang string) *model.CanonicalEntity {
	out := &model.CanonicalEntity{ID: id}

	if l, ok := ent.Labels[lang]; ok {
		out.Name = l.Value
	} else if l, ok := ent.Labels["en"]; ok {
		out.Name = l.Value
	}
	for _, a := range ent.Aliases[lang] {
		out.Aliases = append(out.Aliases, a.Value)
	}
	if sl, ok := ent.Sitelinks[lang+"wiki"]; ok && sl.Title != "" {
		out.WikipediaURL = "https://" + lang + ".wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(sl.Title, " ", "_"))
	}

	if v := firstString(ent, "P856"); v != "" {
		out.Website = v
	}
	if v := firstString(ent, "P18"); v != "" {
		out.Image = commonsFilePath + url.PathEscape(strings.ReplaceAll(v, " ", "_"))
	}
	for _, c := range ent.Claims["P31"] {
		var item struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &item); err == nil && item.ID != "" {
			out.Categories = append(out.Categories, item.ID)
		}
	}
	return out
}

// firstString returns the first string-valued claim for a property
func firstString(ent wbEntity, property string) string {
	for _, c := range ent.Claims[property] {
		var s string
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}
