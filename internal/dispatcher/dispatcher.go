package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"shopper-service/internal/models"
	"shopper-service/internal/service"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// Command names emitted by the assistant frontend.
const (
	CommandAddToCart   = "ADD_TO_CART"
	CommandPlaceOrder  = "PLACE_ORDER"
	CommandCancelOrder = "CANCEL_ORDER"
)

// Assistant replies embed at most one command as NAME:{json}. The payload
// match is non-greedy so trailing prose after the closing brace is ignored.
var (
	addToCartRe   = regexp.MustCompile(`ADD_TO_CART:({.*?})`)
	placeOrderRe  = regexp.MustCompile(`PLACE_ORDER:({.*?})`)
	cancelOrderRe = regexp.MustCompile(`CANCEL_ORDER:({.*?})`)
)

// ErrMalformedCommand reports a recognized command tag with an unreadable
// payload. It is distinct from downstream business errors so the caller can
// blame the assistant rather than the user.
var ErrMalformedCommand = errors.New("malformed assistant command")

// Command is the tagged union of everything the assistant may ask for.
type Command interface {
	commandName() string
}

// AddToCartCommand resolves a product by name and adds it to the cart.
type AddToCartCommand struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// PlaceOrderCommand checks out the current cart. Method defaults to wallet.
type PlaceOrderCommand struct {
	Method string `json:"method"`
}

// CancelOrderCommand cancels one of the user's orders by order number.
type CancelOrderCommand struct {
	OrderNumber string `json:"orderNumber"`
}

func (AddToCartCommand) commandName() string   { return CommandAddToCart }
func (PlaceOrderCommand) commandName() string  { return CommandPlaceOrder }
func (CancelOrderCommand) commandName() string { return CommandCancelOrder }

// Parse extracts the first command embedded in an assistant reply. A reply
// with no command tag returns (nil, nil); plain conversation is not an
// error.
func Parse(text string) (Command, error) {
	if m := addToCartRe.FindStringSubmatch(text); m != nil {
		var cmd AddToCartCommand
		if err := json.Unmarshal([]byte(m[1]), &cmd); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedCommand, CommandAddToCart)
		}
		if cmd.Name == "" {
			return nil, fmt.Errorf("%w: %s missing product name", ErrMalformedCommand, CommandAddToCart)
		}
		if cmd.Quantity <= 0 {
			cmd.Quantity = 1
		}
		return cmd, nil
	}
	if m := placeOrderRe.FindStringSubmatch(text); m != nil {
		var cmd PlaceOrderCommand
		if err := json.Unmarshal([]byte(m[1]), &cmd); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedCommand, CommandPlaceOrder)
		}
		if cmd.Method == "" {
			cmd.Method = models.PaymentTypeWallet
		}
		return cmd, nil
	}
	if m := cancelOrderRe.FindStringSubmatch(text); m != nil {
		var cmd CancelOrderCommand
		if err := json.Unmarshal([]byte(m[1]), &cmd); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedCommand, CommandCancelOrder)
		}
		if cmd.OrderNumber == "" {
			return nil, fmt.Errorf("%w: %s missing order number", ErrMalformedCommand, CommandCancelOrder)
		}
		return cmd, nil
	}
	return nil, nil
}

// Catalog resolves products by name for ADD_TO_CART.
type Catalog interface {
	ResolveByName(ctx context.Context, name string) (*models.Product, error)
}

// Cart adds resolved products to a user's cart.
type Cart interface {
	Add(ctx context.Context, userID string, product *models.Product, quantity int) error
}

// Checkout places orders for PLACE_ORDER.
type Checkout interface {
	PlaceOrder(ctx context.Context, req *service.PlaceOrderRequest) (*models.Order, error)
}

// Orders looks up and cancels orders for CANCEL_ORDER.
type Orders interface {
	GetOrderByNumber(ctx context.Context, userID, orderNumber string) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID, refundDestination string) (*models.Order, error)
}

// Addresses supplies a default shipping address for PLACE_ORDER, which
// carries none of its own.
type Addresses interface {
	LatestShippingAddress(ctx context.Context, userID string) (*models.Address, error)
}

// Dispatcher executes assistant commands against the real services and
// turns results into user-facing text. Nothing here holds state; every
// command is authorized against the calling user's own data.
type Dispatcher struct {
	catalog   Catalog
	cart      Cart
	checkout  Checkout
	orders    Orders
	addresses Addresses
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(catalog Catalog, cart Cart, checkout Checkout, orders Orders, addresses Addresses) *Dispatcher {
	return &Dispatcher{
		catalog:   catalog,
		cart:      cart,
		checkout:  checkout,
		orders:    orders,
		addresses: addresses,
		logger:    util.GetLogger(),
	}
}

// Dispatch parses text and executes any embedded command on behalf of
// userID, returning a reply suitable for showing in the chat. Replies for
// failures are apologetic but specific; the error return carries the cause
// for logging.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, text string) (string, error) {
	cmd, err := Parse(text)
	if err != nil {
		util.DispatcherCommandsTotal.WithLabelValues("unknown", "malformed").Inc()
		return "Sorry, I couldn't understand that request.", err
	}
	if cmd == nil {
		return "", nil
	}

	var reply string
	switch c := cmd.(type) {
	case AddToCartCommand:
		reply, err = d.addToCart(ctx, userID, c)
	case PlaceOrderCommand:
		reply, err = d.placeOrder(ctx, userID, c)
	case CancelOrderCommand:
		reply, err = d.cancelOrder(ctx, userID, c)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.Warn("Assistant command failed",
			zap.String("command", cmd.commandName()),
			zap.String("user_id", userID),
			zap.Error(err))
	}
	util.DispatcherCommandsTotal.WithLabelValues(cmd.commandName(), outcome).Inc()
	return reply, err
}

func (d *Dispatcher) addToCart(ctx context.Context, userID string, cmd AddToCartCommand) (string, error) {
	product, err := d.catalog.ResolveByName(ctx, cmd.Name)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return fmt.Sprintf("Sorry, I couldn't find a product matching %q.", cmd.Name), err
		}
		return "Sorry, something went wrong looking up that product.", err
	}
	if err := d.cart.Add(ctx, userID, product, cmd.Quantity); err != nil {
		return "Sorry, I couldn't add that to your cart.", err
	}
	return fmt.Sprintf("Added %d x %s to your cart.", cmd.Quantity, product.Name), nil
}

func (d *Dispatcher) placeOrder(ctx context.Context, userID string, cmd PlaceOrderCommand) (string, error) {
	address, err := d.addresses.LatestShippingAddress(ctx, userID)
	if err != nil {
		return "Sorry, I couldn't place your order.", err
	}
	if address == nil {
		address = &models.Address{Address: "Default address on file"}
	}

	method := strings.ToLower(strings.TrimSpace(cmd.Method))
	switch method {
	case models.PaymentTypeWallet, models.PaymentTypeCreditCard, models.PaymentTypeUPI:
	default:
		method = models.PaymentTypeWallet
	}

	order, err := d.checkout.PlaceOrder(ctx, &service.PlaceOrderRequest{
		UserID:          userID,
		ShippingAddress: *address,
		PaymentMethod:   models.PaymentMethod{Type: method},
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyCart):
			return "Your cart is empty, so there's nothing to order yet.", err
		case errors.Is(err, models.ErrInsufficientBalance):
			return "Sorry, your wallet balance isn't enough for this order.", err
		case errors.Is(err, models.ErrPaymentFailed):
			return "Sorry, the payment didn't go through. Please try again.", err
		}
		return "Sorry, I couldn't place your order.", err
	}
	return fmt.Sprintf("Order %s placed! Total: %d.", order.OrderNumber, order.TotalPrice), nil
}

func (d *Dispatcher) cancelOrder(ctx context.Context, userID string, cmd CancelOrderCommand) (string, error) {
	order, err := d.orders.GetOrderByNumber(ctx, userID, cmd.OrderNumber)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return fmt.Sprintf("Sorry, I couldn't find order %s.", cmd.OrderNumber), err
		}
		return "Sorry, I couldn't look up that order.", err
	}

	// Chat cancellations always refund to the wallet so the money is
	// visible to the user immediately.
	cancelled, err := d.orders.Cancel(ctx, userID, order.ID, models.RefundToWallet)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return fmt.Sprintf("Sorry, order %s can no longer be cancelled.", cmd.OrderNumber), err
		}
		return "Sorry, I couldn't cancel that order.", err
	}
	return fmt.Sprintf("Order %s has been cancelled. Your refund of %d has been credited to your wallet.",
		cancelled.OrderNumber, cancelled.TotalPrice), nil
}
