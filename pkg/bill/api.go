package bill

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SignerFor yields the signing capability of the current request, typically
// backed by the caller's zkLogin session cookie. Keeping it behind a
// function keeps this package ignorant of how sessions work; a wallet-based
// signer plugs in the same way.
type SignerFor func(c echo.Context) (SignFunc, error)

type API struct {
	service   *Service
	signerFor SignerFor
}

func NewAPI(service *Service, signerFor SignerFor) *API {
	return &API{service: service, signerFor: signerFor}
}

func (a *API) MountRoutes(group *echo.Group) {
	group.POST("/groups", a.CreateGroup)
	group.GET("/groups", a.ListGroups)
	group.GET("/groups/:id", a.GetGroup)
	group.POST("/groups/:id/join", a.JoinGroup)
	group.GET("/groups/:id/bills", a.ListBills)
	group.POST("/bills", a.CreateBill)
	group.GET("/bills/:id", a.GetBill)
	group.POST("/bills/:id/settle", a.SettleDebt)
}

type createGroupRequest struct {
	Name    string `json:"name" validate:"required"`
	Icon    string `json:"icon"`
	Creator string `json:"creator" validate:"required"`
}

func (a *API) CreateGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	group, err := a.service.CreateGroup(req.Name, req.Icon, req.Creator)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to create group")
	}
	return c.JSON(http.StatusCreated, group)
}

func (a *API) ListGroups(c echo.Context) error {
	member := c.QueryParam("member")
	if member == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "member is required")
	}
	groups, err := a.service.ListGroups(member)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to list groups")
	}
	return c.JSON(http.StatusOK, groups)
}

func (a *API) GetGroup(c echo.Context) error {
	group, err := a.service.GetGroup(c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Group not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to load group")
	}
	return c.JSON(http.StatusOK, group)
}

type joinGroupRequest struct {
	Member string `json:"member" validate:"required"`
}

func (a *API) JoinGroup(c echo.Context) error {
	var req joinGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	group, err := a.service.JoinGroup(c.Param("id"), req.Member)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Group not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to join group")
	}
	return c.JSON(http.StatusOK, group)
}

type debtRequest struct {
	Debtor string `json:"debtor" validate:"required"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type createBillRequest struct {
	GroupID  string        `json:"groupId" validate:"required"`
	Title    string        `json:"title" validate:"required"`
	Creditor string        `json:"creditor" validate:"required"`
	Debts    []debtRequest `json:"debts" validate:"required,min=1,dive"`
}

func (a *API) CreateBill(c echo.Context) error {
	var req createBillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sign, err := a.signerFor(c)
	if err != nil {
		return err
	}

	debts := make([]Debt, 0, len(req.Debts))
	for _, d := range req.Debts {
		debts = append(debts, Debt{Debtor: d.Debtor, Amount: d.Amount})
	}
	created, err := a.service.CreateBill(c.Request().Context(), req.GroupID, req.Title, req.Creditor, debts, sign)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Group not found")
	} else if err != nil {
		slog.Error("Unable to create bill", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to create bill")
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *API) GetBill(c echo.Context) error {
	found, err := a.service.GetBill(c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Bill not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to load bill")
	}
	return c.JSON(http.StatusOK, found)
}

func (a *API) ListBills(c echo.Context) error {
	bills, err := a.service.ListBillsByGroup(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to list bills")
	}
	return c.JSON(http.StatusOK, bills)
}

type settleRequest struct {
	Debtor string `json:"debtor" validate:"required"`
}

func (a *API) SettleDebt(c echo.Context) error {
	var req settleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sign, err := a.signerFor(c)
	if err != nil {
		return err
	}
	settled, err := a.service.SettleDebt(c.Request().Context(), c.Param("id"), req.Debtor, sign)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Bill or debt not found")
	} else if err != nil {
		slog.Error("Unable to settle debt", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to settle debt")
	}
	return c.JSON(http.StatusOK, settled)
}
