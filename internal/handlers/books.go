package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/events"
	"github.com/mkravch/media_library/internal/logging"
	mwauth "github.com/mkravch/media_library/internal/middleware/auth"
	"github.com/mkravch/media_library/internal/models"
	"github.com/mkravch/media_library/internal/search"
	"github.com/mkravch/media_library/internal/util"
)

const borrowPeriod = 14 * 24 * time.Hour

var errBookBorrowed = errors.New("book is already borrowed")

type BookHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Index    string
	Producer *events.Producer

	GoogleBooksURL string
	GoogleAPIKey   string
	Client         *http.Client
}

type historyEntry struct {
	ID         uint       `json:"id"`
	UserID     uint       `json:"user_id"`
	UserEmail  string     `json:"user_email"`
	BookID     uint       `json:"book_id"`
	BookTitle  string     `json:"book_title"`
	BookCover  string     `json:"book_cover"`
	BorrowDate time.Time  `json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`
	DueDate    time.Time  `json:"due_date"`
}

// Recent returns every book, newest first; the client paginates.
func (h *BookHandler) Recent(c echo.Context) error {
	var books []models.Book
	if err := h.DB.WithContext(c.Request().Context()).
		Order("id desc").Find(&books).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list books failed")
	}
	return c.JSON(http.StatusOK, books)
}

// Search queries the local elasticsearch book index.
func (h *BookHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not available")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	total, books, err := search.Books(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("book search failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "books": books})
}

// SearchGlobal queries the Google Books volumes API and annotates each result
// with local availability.
func (h *BookHandler) SearchGlobal(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}

	results, err := h.googleSearch(c, q)
	if err != nil {
		logging.FromContext(ctx).Warn("google books lookup failed", "error", err)
		results = nil
	}

	final := make([]echo.Map, 0, len(results))
	for _, book := range results {
		entry := echo.Map{
			"google_id":   book.GoogleID,
			"title":       book.Title,
			"author":      book.Author,
			"isbn":        book.ISBN,
			"cover_url":   book.CoverURL,
			"description": book.Description,
			"category":    book.Category,
			"source":      "Google Books",
			"in_library":  false,
			"available":   false,
			"library_id":  nil,
		}

		var local models.Book
		err := h.DB.WithContext(ctx).Where("isbn = ?", book.ISBN).First(&local).Error
		if err == nil {
			entry["in_library"] = true
			entry["available"] = local.Available
			entry["library_id"] = local.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
		}
		final = append(final, entry)
	}

	return c.JSON(http.StatusOK, final)
}

type globalResult struct {
	GoogleID    string
	Title       string
	Author      string
	ISBN        string
	CoverURL    string
	Description string
	Category    string
}

func (h *BookHandler) googleSearch(c echo.Context, query string) ([]globalResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", "40")
	params.Set("printType", "books")
	if h.GoogleAPIKey != "" {
		params.Set("key", h.GoogleAPIKey)
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet,
		h.GoogleBooksURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books: %s", resp.Status)
	}

	var data struct {
		Items []struct {
			ID         string `json:"id"`
			VolumeInfo struct {
				Title               string   `json:"title"`
				Authors             []string `json:"authors"`
				Description         string   `json:"description"`
				Categories          []string `json:"categories"`
				IndustryIdentifiers []struct {
					Type       string `json:"type"`
					Identifier string `json:"identifier"`
				} `json:"industryIdentifiers"`
				ImageLinks struct {
					Thumbnail      string `json:"thumbnail"`
					SmallThumbnail string `json:"smallThumbnail"`
				} `json:"imageLinks"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	results := make([]globalResult, 0, len(data.Items))
	for _, item := range data.Items {
		info := item.VolumeInfo

		isbn := "N/A"
		for _, ident := range info.IndustryIdentifiers {
			if ident.Type == "ISBN_13" {
				isbn = ident.Identifier
				break
			}
			if isbn == "N/A" {
				isbn = ident.Identifier
			}
		}

		cover := info.ImageLinks.Thumbnail
		if cover == "" {
			cover = info.ImageLinks.SmallThumbnail
		}

		author := "Unknown Author"
		if len(info.Authors) > 0 {
			author = info.Authors[0]
		}
		category := "General"
		if len(info.Categories) > 0 {
			category = info.Categories[0]
		}
		title := info.Title
		if title == "" {
			title = "Unknown Title"
		}
		description := info.Description
		if len(description) > 300 {
			description = description[:300]
		}

		results = append(results, globalResult{
			GoogleID:    item.ID,
			Title:       title,
			Author:      author,
			ISBN:        isbn,
			CoverURL:    cover,
			Description: description,
			Category:    category,
		})
	}
	return results, nil
}

// Borrow checks out a book for the caller. A book first seen through the
// global search is created on the fly. The availability flip and the borrow
// record commit atomically.
func (h *BookHandler) Borrow(c echo.Context) error {
	ctx := c.Request().Context()
	userID := mwauth.UserID(c)

	var req struct {
		ISBN        string `json:"isbn"`
		Title       string `json:"title"`
		Author      string `json:"author"`
		CoverURL    string `json:"cover_url"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ISBN == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "book has no ISBN")
	}

	var book models.Book
	created := false

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("isbn = ?", req.ISBN).First(&book).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category := req.Category
			if category == "" {
				category = "General"
			}
			book = models.Book{
				Title:       req.Title,
				Author:      req.Author,
				ISBN:        req.ISBN,
				CoverURL:    req.CoverURL,
				Description: req.Description,
				Category:    category,
				Available:   true,
			}
			if err := tx.Create(&book).Error; err != nil {
				return err
			}
			created = true
		} else if err != nil {
			return err
		}

		if !book.Available {
			return errBookBorrowed
		}

		record := models.BorrowRecord{
			UserID:     userID,
			BookID:     book.ID,
			BorrowDate: time.Now().UTC(),
			DueDate:    time.Now().UTC().Add(borrowPeriod),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		return tx.Model(&models.Book{}).Where("id = ?", book.ID).
			Update("available", false).Error
	})
	if err != nil {
		if errors.Is(err, errBookBorrowed) {
			return echo.NewHTTPError(http.StatusBadRequest, "book is already borrowed")
		}
		logging.FromContext(ctx).Error("borrow failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "borrow failed")
	}

	if created {
		if err := search.IndexBook(ctx, h.ES, h.Index, &book); err != nil {
			logging.FromContext(ctx).Warn("index book failed", "book_id", book.ID, "error", err)
		}
	}

	h.publish(c, "book_events", fmt.Sprint(book.ID), echo.Map{
		"type":    "book_borrowed",
		"book_id": book.ID,
		"user_id": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "book borrowed successfully"})
}

// Return closes a borrow record and makes the book available again.
func (h *BookHandler) Return(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		HistoryID uint `json:"history_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var record models.BorrowRecord
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", req.HistoryID).First(&record).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.BorrowRecord{}).Where("id = ?", record.ID).
			Update("return_date", now).Error; err != nil {
			return err
		}

		return tx.Model(&models.Book{}).Where("id = ?", record.BookID).
			Update("available", true).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "record not found")
		}
		logging.FromContext(ctx).Error("return failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "return failed")
	}

	h.publish(c, "book_events", fmt.Sprint(record.BookID), echo.Map{
		"type":    "book_returned",
		"book_id": record.BookID,
		"user_id": record.UserID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "book returned successfully"})
}

// History lists the caller's borrow records, or everyone's for admins.
func (h *BookHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	query := h.DB.WithContext(ctx).Table("borrow_records").
		Select(`borrow_records.id, borrow_records.user_id, users.email as user_email,
			borrow_records.book_id, books.title as book_title, books.cover_url as book_cover,
			borrow_records.borrow_date, borrow_records.return_date, borrow_records.due_date`).
		Joins("LEFT JOIN users ON users.id = borrow_records.user_id").
		Joins("LEFT JOIN books ON books.id = borrow_records.book_id").
		Order("borrow_records.borrow_date desc")

	if !mwauth.IsAdmin(c) {
		query = query.Where("borrow_records.user_id = ?", mwauth.UserID(c))
	}

	var entries []historyEntry
	if err := query.Scan(&entries).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "history lookup failed")
	}
	if entries == nil {
		entries = []historyEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *BookHandler) publish(c echo.Context, topic, key string, event echo.Map) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("kafka publish error", "topic", topic, "error", err)
	}
}
