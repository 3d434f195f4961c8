// Package search keeps the book catalog queryable through elasticsearch.
// Indexing is best effort: the relational store stays the source of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/mkravch/media_library/internal/models"
)

const BookIndex = "books"

func IndexBook(ctx context.Context, es *elasticsearch.Client, index string, book *models.Book) error {
	if es == nil {
		return nil
	}

	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("index book: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(book.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index book: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index book: %s", res.Status())
	}
	return nil
}

func DeleteBook(ctx context.Context, es *elasticsearch.Client, index string, bookID uint) error {
	if es == nil {
		return nil
	}

	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(bookID), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	defer res.Body.Close()
	return nil
}

func Books(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Book, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "author", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search books: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search books: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search books: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Book `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	books := make([]models.Book, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		books[i] = hit.Source
	}
	return r.Hits.Total.Value, books, nil
}
