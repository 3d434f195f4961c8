package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkravch/media_library/internal/logging"
	"github.com/mkravch/media_library/internal/models"
	"github.com/mkravch/media_library/internal/search"
)

type AdminHandler struct {
	DB    *gorm.DB
	ES    *elasticsearch.Client
	Index string
}

// Import adds a catalog entry picked from the global search.
func (h *AdminHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()

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

	var existing models.Book
	err := h.DB.WithContext(ctx).Where("isbn = ?", req.ISBN).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "book already exists in library")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}

	book := models.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		CoverURL:    req.CoverURL,
		Description: req.Description,
		Category:    req.Category,
		Available:   true,
	}
	if err := h.DB.WithContext(ctx).Create(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "import failed")
	}

	if err := search.IndexBook(ctx, h.ES, h.Index, &book); err != nil {
		logging.FromContext(ctx).Warn("index book failed", "book_id", book.ID, "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "book imported successfully",
		"book":    book,
	})
}

// Stats aggregates the dashboard numbers: totals, overdue count, category
// distribution, inventory split and the ten most recent transactions.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	db := h.DB.WithContext(ctx)
	now := time.Now().UTC()

	var totalBooks, borrowedBooks, totalUsers, overdueCount int64
	if err := db.Model(&models.Book{}).Count(&totalBooks).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}
	if err := db.Model(&models.Book{}).Where("available = ?", false).Count(&borrowedBooks).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}
	if err := db.Model(&models.BorrowRecord{}).
		Where("return_date IS NULL AND due_date < ?", now).
		Count(&overdueCount).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}

	var categories []struct {
		Category string
		Value    int64
	}
	if err := db.Model(&models.Book{}).
		Select("category, count(id) as value").
		Group("category").
		Scan(&categories).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}

	categoryData := make([]echo.Map, 0, len(categories))
	for _, cat := range categories {
		name := cat.Category
		if name == "" {
			name = "Uncategorized"
		}
		categoryData = append(categoryData, echo.Map{"name": name, "value": cat.Value})
	}

	var recent []models.BorrowRecord
	if err := db.Order("borrow_date desc").Limit(10).Find(&recent).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stats failed")
	}

	transactions := make([]echo.Map, 0, len(recent))
	for _, rec := range recent {
		userName := "Unknown User"
		var user models.User
		if err := db.Where("id = ?", rec.UserID).First(&user).Error; err == nil {
			userName = user.Email
		}

		bookTitle := "Unknown Title (Deleted)"
		var book models.Book
		if err := db.Where("id = ?", rec.BookID).First(&book).Error; err == nil {
			bookTitle = book.Title
		}

		status := "Borrowed"
		switch {
		case rec.ReturnDate != nil:
			status = "Returned"
		case rec.DueDate.Before(now):
			status = "Overdue"
		}

		transactions = append(transactions, echo.Map{
			"user_name":   userName,
			"book_title":  bookTitle,
			"borrow_date": rec.BorrowDate.Format(time.RFC3339),
			"status":      status,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_books":    totalBooks,
		"borrowed_books": borrowedBooks,
		"total_users":    totalUsers,
		"overdue_count":  overdueCount,
		"category_data":  categoryData,
		"inventory_status": []echo.Map{
			{"name": "Available", "value": totalBooks - borrowedBooks},
			{"name": "Borrowed", "value": borrowedBooks},
		},
		"recent_transactions": transactions,
	})
}

func (h *AdminHandler) AllBooks(c echo.Context) error {
	var books []models.Book
	if err := h.DB.WithContext(c.Request().Context()).Find(&books).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list books failed")
	}
	return c.JSON(http.StatusOK, books)
}

func (h *AdminHandler) UpdateBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid book id")
	}

	var book models.Book
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}

	var req struct {
		Title       *string `json:"title"`
		Author      *string `json:"author"`
		Description *string `json:"description"`
		Category    *string `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.Category != nil {
		book.Category = *req.Category
	}

	if err := h.DB.WithContext(ctx).Save(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	if err := search.IndexBook(ctx, h.ES, h.Index, &book); err != nil {
		logging.FromContext(ctx).Warn("index book failed", "book_id", book.ID, "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "book updated successfully",
		"book":    book,
	})
}

func (h *AdminHandler) DeleteBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid book id")
	}

	var book models.Book
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}

	if !book.Available {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot delete a borrowed book")
	}

	if err := h.DB.WithContext(ctx).Delete(&book).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}

	if err := search.DeleteBook(ctx, h.ES, h.Index, book.ID); err != nil {
		logging.FromContext(ctx).Warn("unindex book failed", "book_id", book.ID, "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "book deleted successfully"})
}
