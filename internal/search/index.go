// Package search maintains the full-text view of published projects in a
// Bleve index. The index is a derived projection: a document exists iff the
// project is currently published, and every document can be rebuilt from
// the authoritative project record alone.
package search

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/folioworks/discovery/internal/storage"
)

// Index wraps a Bleve search index
type Index struct {
	index bleve.Index
}

// Document is the denormalized search projection of a project.
type Document struct {
	ID              string
	Title           string
	Description     string
	Body            string // plain text extracted from rich content
	Tags            []string
	TechTags        []string
	Creator         string
	Published       bool
	EngagementScore float64
	ViewCount       float64
	CreatedAt       time.Time
}

// DocumentFromProject builds the search projection for a project. Body text
// extraction never fails; malformed rich content yields an empty body.
func DocumentFromProject(p *storage.Project) *Document {
	return &Document{
		ID:              p.ID.String(),
		Title:           p.Title,
		Description:     p.Description,
		Body:            ExtractText(p.Content),
		Tags:            p.Tags,
		TechTags:        p.TechTags,
		Creator:         p.CreatorName,
		Published:       p.Published,
		EngagementScore: p.EngagementScore,
		ViewCount:       float64(p.ViewCount),
		CreatedAt:       p.CreatedAt,
	}
}

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	var idx bleve.Index
	var err error

	// Try to open existing index
	idx, err = bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		// Create new index with custom mapping
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// OpenInMemory creates a non-persistent index, used by tests.
func OpenInMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}
	return &Index{index: idx}, nil
}

/// buildIndexMapping creates the index mapping: analyzed text for title and
// body, keyword-analyzed tags so facet terms and filters see exact values.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en" // English analyzer for better stemming

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = "keyword"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Description", textFieldMapping)
	docMapping.AddFieldMappingsAt("Body", textFieldMapping)
	docMapping.AddFieldMappingsAt("Tags", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("TechTags", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Creator", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Published", bleve.NewBooleanFieldMapping())
	docMapping.AddFieldMappingsAt("EngagementScore", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("ViewCount", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("CreatedAt", bleve.NewDateTimeFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexDocument adds or updates a document in the index. Upsert semantics:
// safe to call repeatedly for the same project.
func (i *Index) IndexDocument(doc *Document) error {
	return i.index.Index(doc.ID, doc)
}

// Remove deletes a document from the index. Removing an id that was never
// indexed is not an error.
func (i *Index) Remove(id string) error {
	return i.index.Delete(id)
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// SortOrder selects the result ordering for a query.
type SortOrder string

const (
	// SortRelevance uses the engine's default scoring.
	SortRelevance SortOrder = "relevance"
	// SortDate orders by descending creation time.
	SortDate SortOrder = "date"
	// SortPopularity orders by descending engagement score, then
	// descending view count.
	SortPopularity SortOrder = "popularity"
)

// QueryRequest is a filtered, sorted, paginated search.
type QueryRequest struct {
	Text     string
	Tags     []string
	TechTags []string
	Sort     SortOrder
	Page     int // 1-based
	PageSize int
}

// Hit is one matched document.
type Hit struct {
	ID        string
	Title     string
	Creator   string
	Score     float64
	Fragments map[string][]string // Highlighted snippets
}

// FacetCount is one term's document count within the matched set.
type FacetCount struct {
	Term  string
	Count int
}

// QueryResult carries hits, the estimated total, and facet distributions
// over tags and tech tags for the matched result set.
type QueryResult struct {
	Hits   []*Hit
	Total  uint64
	Facets map[string][]FacetCount
}

const facetSize = 25

// Query searches the projection. All queries implicitly restrict to
// published documents.
func (i *Index) Query(req QueryRequest) (*QueryResult, error) {
	conjuncts := []query.Query{publishedQuery()}

	if req.Text != "" {
		// Supports quotes, boolean operators, fuzzy ~
		conjuncts = append(conjuncts, bleve.NewQueryStringQuery(req.Text))
	}
	for _, tag := range req.Tags {
		conjuncts = append(conjuncts, termQuery("Tags", tag))
	}
	for _, tag := range req.TechTags {
		conjuncts = append(conjuncts, termQuery("TechTags", tag))
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if req.Page > 1 {
		from = (req.Page - 1) * pageSize
	}

	search := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), pageSize, from, false)
	search.Fields = []string{"Title", "Creator"}
	search.Highlight = bleve.NewHighlightWithStyle("html")
	search.AddFacet("tags", bleve.NewFacetRequest("Tags", facetSize))
	search.AddFacet("tech_tags", bleve.NewFacetRequest("TechTags", facetSize))

	switch req.Sort {
	case SortDate:
		search.SortBy([]string{"-CreatedAt"})
	case SortPopularity:
		search.SortBy([]string{"-EngagementScore", "-ViewCount"})
	default:
		// Relevance: engine default scoring
	}

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := &QueryResult{
		Total:  results.Total,
		Facets: make(map[string][]FacetCount),
	}

	for _, hit := range results.Hits {
		h := &Hit{
			ID:        hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if title, ok := hit.Fields["Title"].(string); ok {
			h.Title = title
		}
		if creator, ok := hit.Fields["Creator"].(string); ok {
			h.Creator = creator
		}
		out.Hits = append(out.Hits, h)
	}

	for name, facet := range results.Facets {
		counts := make([]FacetCount, 0, len(facet.Terms.Terms()))
		for _, term := range facet.Terms.Terms() {
			counts = append(counts, FacetCount{Term: term.Term, Count: term.Count})
		}
		out.Facets[name] = counts
	}

	return out, nil
}

func publishedQuery() query.Query {
	q := bleve.NewBoolFieldQuery(true)
	q.SetField("Published")
	return q
}

func termQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}
