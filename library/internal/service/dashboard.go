package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-desk/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-desk/library/internal/repository"
)

func (s *Service) Dashboard(ctx context.Context) (model.Dashboard, error) {
	var d model.Dashboard
	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int, table libraryRepo.Table, unpaidOnly bool) {
		g.Go(func() error {
			n, err := s.repo.Count(ctx, table, unpaidOnly)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(&d.TotalBooks, libraryRepo.Books, false)
	count(&d.TotalMembers, libraryRepo.Members, false)
	count(&d.TotalLoans, libraryRepo.Loans, false)
	count(&d.TotalFines, libraryRepo.Fines, false)
	count(&d.UnpaidFines, libraryRepo.Fines, true)

	if err := g.Wait(); err != nil {
		return model.Dashboard{}, err
	}
	return d, nil
}
