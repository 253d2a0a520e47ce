// cartctl is a CLI tool for driving a running cartd.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartctl show
//	cartctl add -id ID [-name NAME] [-price N] [-image URL] [-brand B] [-category C]
//	cartctl qty -id ID -n N
//	cartctl remove -id ID
//	cartctl clear
//	cartctl login -token TOKEN
//	cartctl logout
//	cartctl merge
//	cartctl notices
//
// Examples:
//
//	cartctl add -id 7 -name "Vitamin C Serum" -price 24.5
//	cartctl qty -id 7 -n 3
//	cartctl login -token "$JWT" && cartctl show
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "show":
		runShow(args)
	case "add":
		runAdd(args)
	case "qty":
		runQuantity(args)
	case "remove":
		runRemove(args)
	case "clear":
		runClear(args)
	case "login":
		runLogin(args)
	case "logout":
		runLogout(args)
	case "merge":
		runMerge(args)
	case "notices":
		runNotices(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - cart service command line

Usage:
  cartctl <command> [options]

Commands:
  show      Print the current cart
  add       Add one unit of a product
  qty       Set the quantity of a cart line
  remove    Remove a cart line
  clear     Empty the cart
  login     Sign in with a bearer token (merges the guest cart)
  logout    Sign out (restores the guest cart)
  merge     Re-run the guest cart merge
  notices   Print recent user notices

Global options (per command):
  -server URL   cartd base URL (default http://localhost:8080)
  -q            Quiet mode - only print the cart total
  -v            Verbose - show full request/response
  -no-color     Disable colored output
`)
}

// newFlagSet registers the global flags on a command's flag set.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serverURL, "server", envOr("CARTD_URL", "http://localhost:8080"), "cartd base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the total")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

func runShow(args []string) {
	fs := newFlagSet("show", "[options]")
	parse(fs, args)

	resp, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}
	printCart(resp)
}

func runAdd(args []string) {
	fs := newFlagSet("add", "-id ID [options]")
	var id, name, image, brand, category string
	var price float64
	fs.StringVar(&id, "id", "", "Product ID (required)")
	fs.StringVar(&name, "name", "", "Product name")
	fs.Float64Var(&price, "price", 0, "Unit price")
	fs.StringVar(&image, "image", "", "Image URL")
	fs.StringVar(&brand, "brand", "", "Brand")
	fs.StringVar(&category, "category", "", "Category")
	parse(fs, args)

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	product := map[string]interface{}{"id": id, "price": price}
	for k, v := range map[string]string{"name": name, "imageUrl": image, "brand": brand, "category": category} {
		if v != "" {
			product[k] = v
		}
	}

	resp, err := doRequest("POST", "/cart/items", product)
	if err != nil {
		fatal("Failed to add product: %v", err)
	}
	printSuccess("Added %s", id)
	printCart(resp)
}

func runQuantity(args []string) {
	fs := newFlagSet("qty", "-id ID -n N [options]")
	var id string
	var n int
	fs.StringVar(&id, "id", "", "Product ID (required)")
	fs.IntVar(&n, "n", 0, "New quantity, at least 1 (required)")
	parse(fs, args)

	if id == "" || n < 1 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("PUT", "/cart/items/"+url.PathEscape(id), map[string]int{"quantity": n})
	if err != nil {
		fatal("Failed to update quantity: %v", err)
	}
	printSuccess("Quantity of %s set to %d", id, n)
	printCart(resp)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "-id ID [options]")
	var id string
	fs.StringVar(&id, "id", "", "Product ID (required)")
	parse(fs, args)

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("DELETE", "/cart/items/"+url.PathEscape(id), nil)
	if err != nil {
		fatal("Failed to remove product: %v", err)
	}
	printSuccess("Removed %s", id)
	printCart(resp)
}

func runClear(args []string) {
	fs := newFlagSet("clear", "[options]")
	parse(fs, args)

	resp, err := doRequest("DELETE", "/cart", nil)
	if err != nil {
		fatal("Failed to clear cart: %v", err)
	}
	printSuccess("Cart cleared")
	printCart(resp)
}

func runLogin(args []string) {
	fs := newFlagSet("login", "-token TOKEN [options]")
	var token string
	fs.StringVar(&token, "token", os.Getenv("CART_TOKEN"), "Bearer token (required)")
	parse(fs, args)

	if token == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/session", map[string]string{"token": token})
	if err != nil {
		fatal("Failed to sign in: %v", err)
	}
	printSuccess("Signed in")
	printCart(resp)
	printRecentNotices()
}

func runLogout(args []string) {
	fs := newFlagSet("logout", "[options]")
	parse(fs, args)

	resp, err := doRequest("DELETE", "/session", nil)
	if err != nil {
		fatal("Failed to sign out: %v", err)
	}
	printSuccess("Signed out")
	printCart(resp)
}

func runMerge(args []string) {
	fs := newFlagSet("merge", "[options]")
	parse(fs, args)

	resp, err := doRequest("POST", "/cart/merge", nil)
	if err != nil {
		fatal("Failed to merge cart: %v", err)
	}
	if synced, _ := resp["synced"].(bool); synced {
		printSuccess("Cart synced")
	} else {
		printWarning("Cart not synced with the backend")
	}
	printCart(resp)
}

func runNotices(args []string) {
	fs := newFlagSet("notices", "[options]")
	parse(fs, args)
	printRecentNotices()
}

func printRecentNotices() {
	if quiet {
		return
	}
	resp, err := doRequest("GET", "/notifications", nil)
	if err != nil {
		printWarning("Could not load notices: %v", err)
		return
	}
	notices, _ := resp["notifications"].([]interface{})
	if len(notices) == 0 {
		printInfo("No notices")
		return
	}
	for _, n := range notices {
		m, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		level, _ := m["level"].(string)
		message, _ := m["message"].(string)
		switch level {
		case "error":
			printError("%s", message)
		case "success":
			printSuccess("%s", message)
		default:
			fmt.Printf("%s  ℹ %s%s\n", colorGray, message, colorReset)
		}
	}
}

// printCart renders a cart state response.
func printCart(resp map[string]interface{}) {
	total, _ := resp["cartTotal"].(float64)
	if quiet {
		fmt.Printf("%.2f\n", total)
		return
	}

	items, _ := resp["cart"].([]interface{})
	count, _ := resp["cartCount"].(float64)
	cartID, _ := resp["cartId"].(string)
	if cartID == "" {
		cartID = "(guest)"
	}

	fmt.Printf("  %sCart%s %s%s%s\n", colorBold, colorReset, colorGray, cartID, colorReset)
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		price, _ := m["price"].(float64)
		qty, _ := m["quantity"].(float64)
		fmt.Printf("    - %s %s x%d @ %s\n", m["productId"], m["name"], int(qty), formatPrice(price))
	}
	fmt.Printf("  Items: %s%d%s  Total: %s%s%s\n",
		colorCyan, int(count), colorReset, colorGreen, formatPrice(total), colorReset)
}

func doRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := strings.TrimSuffix(serverURL, "/") + path
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return result, nil
}

// errorMessage extracts "CODE: message" from an error body, or returns it raw.
func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Code == "" {
		return string(body)
	}
	return e.Error.Code + ": " + e.Error.Message
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
