package service

import (
	"context"

	"github.com/Astemirdum/library-desk/library/internal/model"
)

func (s *Service) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, page, size)
}

func (s *Service) GetBook(ctx context.Context, id int64) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, form model.BookForm) (model.Book, error) {
	var book model.Book
	form.Apply(&book)
	book.CopiesTotal = form.CopiesTotal
	book.CopiesAvailable = form.CopiesTotal
	return s.repo.CreateBook(ctx, book)
}

func (s *Service) UpdateBook(ctx context.Context, id int64, form model.BookForm) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, form)
}

func (s *Service) DeleteBook(ctx context.Context, id int64) (model.Book, error) {
	return s.repo.DeleteBook(ctx, id)
}
