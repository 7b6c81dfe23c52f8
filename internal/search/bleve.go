package search

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"stock-assistant/internal/catalog"
)

// BleveEngine indexes the catalog with bleve. Hits are mapped back to
// catalog entries by document ID, so only searchable fields go into the
// index.
type BleveEngine struct {
	index    bleve.Index
	bySymbol map[string]catalog.Stock
}

func NewBleveEngine(indexPath string, stocks []catalog.Stock) (*BleveEngine, error) {
	bySymbol := make(map[string]catalog.Stock, len(stocks))
	for _, st := range stocks {
		bySymbol[strings.ToLower(st.Symbol)] = st
	}

	var index bleve.Index
	var err error
	fresh := true
	if indexPath == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
	} else {
		index, err = bleve.Open(indexPath)
		if err == bleve.ErrorIndexPathDoesNotExist {
			index, err = bleve.New(indexPath, buildIndexMapping())
			if err != nil {
				return nil, fmt.Errorf("create index: %w", err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		} else {
			fresh = false
		}
	}

	if fresh {
		batch := index.NewBatch()
		for _, st := range stocks {
			id := strings.ToLower(st.Symbol)
			doc := map[string]any{
				"symbol":     id,
				"name":       st.Name,
				"aliases":    strings.Join(st.Aliases, " "),
				"popularity": st.Popularity,
			}
			if err := batch.Index(id, doc); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("batch add %s: %w", st.Symbol, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index stocks: %w", err)
		}
	}

	return &BleveEngine{index: index, bySymbol: bySymbol}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Symbols keep dots ("tcs.ns"), so they must not pass through the
	// standard analyzer.
	symbolField := bleve.NewTextFieldMapping()
	symbolField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("symbol", symbolField)

	textField := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("name", textField)
	doc.AddFieldMappingsAt("aliases", textField)

	doc.AddFieldMappingsAt("popularity", bleve.NewNumericFieldMapping())

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}

func (e *BleveEngine) Search(query string, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	limit = clampLimit(limit)

	exact := bleve.NewTermQuery(q)
	exact.SetField("symbol")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(q)
	prefix.SetField("symbol")
	prefix.SetBoost(5.0)

	nameMatch := bleve.NewMatchQuery(query)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)

	aliasMatch := bleve.NewMatchQuery(query)
	aliasMatch.SetField("aliases")
	aliasMatch.SetBoost(3.0)

	symbolWild := bleve.NewWildcardQuery("*" + q + "*")
	symbolWild.SetField("symbol")
	symbolWild.SetBoost(2.0)

	nameWild := bleve.NewWildcardQuery("*" + q + "*")
	nameWild.SetField("name")
	nameWild.SetBoost(1.5)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(
		exact, prefix, nameMatch, aliasMatch, symbolWild, nameWild,
	))
	req.Size = 50

	res, err := e.index.Search(req)
	if err != nil {
		log.Printf("search error: %v", err)
		return nil
	}

	var out []Result
	for _, hit := range res.Hits {
		st, ok := e.bySymbol[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Result{Stock: st, Score: hit.Score*0.7 + st.Popularity*0.3})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *BleveEngine) GetBySymbol(symbol string) *catalog.Stock {
	st, ok := e.bySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		return nil
	}
	found := st
	return &found
}

func (e *BleveEngine) Close() error {
	return e.index.Close()
}
