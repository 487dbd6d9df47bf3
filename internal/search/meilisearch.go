package search

import (
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

// PropertyDocument is the indexed shape of a property.
type PropertyDocument struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	RoomCount int    `json:"room_count"`
	CreatedAt int64  `json:"created_at"`
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "properties",
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"name",
		"address",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"created_at",
		"room_count",
	})
	return err
}

// IndexProperty indexes a single property
func (s *SearchClient) IndexProperty(property *models.Property) error {
	doc := PropertyDocument{
		ID:        property.ID,
		Name:      property.Name,
		Address:   property.Address,
		RoomCount: property.RoomCount(),
		CreatedAt: property.CreatedAt.Unix(),
	}
	_, err := s.client.Index(s.index).AddDocuments([]PropertyDocument{doc})
	return err
}

// Search searches properties by free text
func (s *SearchClient) Search(query string, limit int64) ([]PropertyDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	result, err := s.client.Index(s.index).Search(query, &meilisearch.SearchRequest{
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]PropertyDocument, 0, len(result.Hits))
	for _, hit := range result.Hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		doc := PropertyDocument{}
		if v, ok := m["id"].(string); ok {
			doc.ID = v
		}
		if v, ok := m["name"].(string); ok {
			doc.Name = v
		}
		if v, ok := m["address"].(string); ok {
			doc.Address = v
		}
		if v, ok := m["room_count"].(float64); ok {
			doc.RoomCount = int(v)
		}
		if v, ok := m["created_at"].(float64); ok {
			doc.CreatedAt = int64(v)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
