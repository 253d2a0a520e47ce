// MCP transport handler for the cart engine using the official MCP Go SDK.
// Exposes the cart's consumer contract as MCP tools.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cartsync/internal/model"
)

// === MCP Tool Input Types ===

// GetCartInput is the input schema for get_cart tool.
type GetCartInput struct{}

// AddToCartInput is the input schema for add_to_cart tool.
type AddToCartInput struct {
	Product map[string]any `json:"product" jsonschema:"catalog product record; needs id or productId, may carry name/title, price, pictureUrl/imageUrl, brand and category"`
}

// RemoveFromCartInput is the input schema for remove_from_cart tool.
type RemoveFromCartInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID of the line to remove"`
}

// UpdateQuantityInput is the input schema for update_quantity tool.
type UpdateQuantityInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID of the line to change"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity, at least 1"`
}

// ClearCartInput is the input schema for clear_cart tool.
type ClearCartInput struct{}

// MergeGuestCartInput is the input schema for merge_guest_cart tool.
type MergeGuestCartInput struct{}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cartsync",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Shopping cart for the skincare storefront. " +
				"Use these tools to read the cart and add, remove or change items.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart with item count and total.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add one unit of a product to the cart.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a product line from the cart.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Set the quantity of a product already in the cart.",
	}, h.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every item from the cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_guest_cart",
		Description: "Merge the saved guest cart into the signed-in user's cart. Runs at most once per sign-in.",
	}, h.mcpMergeGuestCart)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *model.State, error) {
	h.session.Check(ctx)
	return h.mcpState()
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *model.State, error) {
	h.session.Check(ctx)

	if len(input.Product) == 0 {
		return nil, nil, fmt.Errorf("product is required")
	}
	if err := h.cart.AddToCart(ctx, input.Product); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpState()
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveFromCartInput,
) (*mcp.CallToolResult, *model.State, error) {
	h.session.Check(ctx)

	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	if err := h.cart.RemoveFromCart(ctx, input.ProductID); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpState()
}

func (h *Handler) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *model.State, error) {
	h.session.Check(ctx)

	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	if input.Quantity < 1 {
		return nil, nil, fmt.Errorf("quantity must be at least 1")
	}
	if err := h.cart.UpdateQuantity(ctx, input.ProductID, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpState()
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClearCartInput,
) (*mcp.CallToolResult, *model.State, error) {
	h.session.Check(ctx)

	if err := h.cart.ClearCart(ctx); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpState()
}

func (h *Handler) mcpMergeGuestCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input MergeGuestCartInput,
) (*mcp.CallToolResult, *model.State, error) {
	h.session.Check(ctx)

	if _, err := h.cart.MergeGuestCartAfterLogin(ctx); err != nil {
		// The fallback cart is still usable; report it alongside the failure.
		h.logger.Warn("guest cart merge did not sync", "error", err.Error())
	}
	return h.mcpState()
}

func (h *Handler) mcpState() (*mcp.CallToolResult, *model.State, error) {
	state := h.cart.Snapshot()
	return nil, &state, nil
}

// mcpError converts engine errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	apiErr := h.toAPIError(err)
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}
