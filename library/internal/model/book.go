package model

import (
	"fmt"

	"github.com/Astemirdum/library-desk/pkg/validate"
)

type Book struct {
	ID              int64   `json:"id" db:"id"`
	Title           string  `json:"title" db:"title"`
	Author          string  `json:"author" db:"author"`
	ISBN            string  `json:"isbn" db:"isbn"`
	Image           *string `json:"image,omitempty" db:"image"`
	ImageURL        *string `json:"imageUrl,omitempty" db:"image_url"`
	CopiesTotal     int     `json:"copiesTotal" db:"copies_total"`
	CopiesAvailable int     `json:"copiesAvailable" db:"copies_available"`
}

func (b Book) IsAvailable() bool {
	return b.CopiesAvailable > 0
}

// BorrowCopy takes one copy off the shelf. It reports false and leaves
// the book untouched when no copy is available.
func (b *Book) BorrowCopy() bool {
	if b.CopiesAvailable > 0 {
		b.CopiesAvailable--
		return true
	}
	return false
}

// ReturnCopy puts one copy back, never above CopiesTotal.
func (b *Book) ReturnCopy() bool {
	if b.CopiesAvailable < b.CopiesTotal {
		b.CopiesAvailable++
		return true
	}
	return false
}

func (b Book) OnLoan() int {
	return b.CopiesTotal - b.CopiesAvailable
}

// SetCopiesTotal resizes the stock keeping the copies on loan unchanged.
func (b *Book) SetCopiesTotal(total int) error {
	onLoan := b.OnLoan()
	if total < onLoan {
		return validate.FieldErrors{
			"copies_total": fmt.Sprintf("Ensure this value is greater than or equal to %d, the number of copies on loan.", onLoan),
		}
	}
	b.CopiesTotal = total
	b.CopiesAvailable = total - onLoan
	return nil
}

func (b Book) CoverURL() string {
	if b.Image != nil && *b.Image != "" {
		return MediaURL + *b.Image
	}
	if b.ImageURL != nil {
		return *b.ImageURL
	}
	return ""
}

type BookForm struct {
	Title       string `form:"title" validate:"required,max=255"`
	Author      string `form:"author" validate:"required,max=255"`
	ISBN        string `form:"isbn" validate:"required,max=13"`
	ImageURL    string `form:"image_url" validate:"omitempty,url,max=200"`
	CopiesTotal int    `form:"copies_total" validate:"gte=1"`

	// Image is the stored path of an uploaded cover, filled in by the handler.
	Image string `form:"-"`
}

func NewBookForm() BookForm {
	return BookForm{CopiesTotal: 1}
}

func BookFormFrom(b Book) BookForm {
	f := BookForm{
		Title:       b.Title,
		Author:      b.Author,
		ISBN:        b.ISBN,
		CopiesTotal: b.CopiesTotal,
	}
	if b.ImageURL != nil {
		f.ImageURL = *b.ImageURL
	}
	return f
}

// Apply copies the descriptive fields onto b. Stock is handled by SetCopiesTotal.
func (f BookForm) Apply(b *Book) {
	b.Title = f.Title
	b.Author = f.Author
	b.ISBN = f.ISBN
	b.ImageURL = nil
	if f.ImageURL != "" {
		url := f.ImageURL
		b.ImageURL = &url
	}
	if f.Image != "" {
		img := f.Image
		b.Image = &img
	}
}
