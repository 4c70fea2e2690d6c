package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

type CustomerController struct {
	DB     *gorm.DB
	Orders *services.OrderRepository
}

func NewCustomerController(db *gorm.DB, orders *services.OrderRepository) *CustomerController {
	return &CustomerController{DB: db, Orders: orders}
}

// GetAllCustomers -> ?q= matches name or phone
func (cc *CustomerController) GetAllCustomers(c *gin.Context) {
	query := cc.DB.Preload("Addresses").Order("name ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where("name LIKE ? OR phone LIKE ?", like, like)
	}

	var customers []models.Customer
	if err := query.Find(&customers).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of customers", customers)
}

func (cc *CustomerController) CreateCustomer(c *gin.Context) {
	type addressReq struct {
		Street       string `json:"street" binding:"required"`
		Number       string `json:"number"`
		Neighborhood string `json:"neighborhood"`
		City         string `json:"city"`
		Complement   string `json:"complement"`
	}
	type reqBody struct {
		Name      string       `json:"name" binding:"required"`
		Phone     *string      `json:"phone"`
		Birthday  string       `json:"birthday"`
		Addresses []addressReq `json:"addresses"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	customer := models.Customer{
		Name:      strings.TrimSpace(req.Name),
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Birthday != "" {
		birthday, err := time.Parse("2006-01-02", req.Birthday)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("birthday must be YYYY-MM-DD"))
			return
		}
		customer.Birthday = &birthday
	}
	for _, a := range req.Addresses {
		customer.Addresses = append(customer.Addresses, models.Address{
			Street:       a.Street,
			Number:       a.Number,
			Neighborhood: a.Neighborhood,
			City:         a.City,
			Complement:   a.Complement,
			CreatedAt:    now,
		})
	}

	if err := cc.DB.Create(&customer).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Customer created", customer)
}

func (cc *CustomerController) GetCustomerByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("customer_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid customer id"))
		return
	}

	var customer models.Customer
	if err := cc.DB.Preload("Addresses").First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("customer not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Customer detail", customer)
}

// GetCustomerOrders -> order history of one customer, newest first
func (cc *CustomerController) GetCustomerOrders(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("customer_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid customer id"))
		return
	}

	orders, err := cc.Orders.ListByCustomer(c.Request.Context(), uint(id))
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Customer orders", orders)
}
