package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/library/internal/view"
)

const membersURL = "/members/"

func (h *Handler) ListMembers(c echo.Context) error {
	members, err := h.librarySvc.ListMembers(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return h.render(c, http.StatusOK, "member_list.html", view.Page{Title: "Members", Data: members})
}

func activeLoansMessage(member model.Member, count int) model.Message {
	return model.Error(fmt.Sprintf("Cannot delete %s. They have %d active loan(s). Please return all books first.",
		member.DisplayName(), count))
}

func (h *Handler) DeleteMemberPage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	member, err := h.librarySvc.GetMember(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	if member.ActiveLoans > 0 {
		return h.redirect(c, membersURL, activeLoansMessage(member, member.ActiveLoans))
	}
	return h.render(c, http.StatusOK, "delete_member.html", view.Page{Title: "Delete member", Data: member})
}

func (h *Handler) DeleteMember(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	member, err := h.librarySvc.DeleteMember(c.Request().Context(), id)
	if err != nil {
		var active *errs.ActiveLoansError
		if errors.As(err, &active) {
			return h.redirect(c, membersURL, activeLoansMessage(member, active.Count))
		}
		return h.fail(err)
	}
	return h.redirect(c, membersURL, model.Success(fmt.Sprintf("Member %s deleted successfully!", member.DisplayName())))
}
