package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/guepardlover77/sms-app/internal/config"
	"github.com/guepardlover77/sms-app/internal/profile"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type conversation struct {
	ThreadID      int64  `json:"thread_id"`
	Address       string `json:"address"`
	DisplayName   string `json:"display_name"`
	Snippet       string `json:"snippet"`
	LastTimestamp int64  `json:"last_timestamp"`
	MessageCount  int    `json:"message_count"`
	UnreadCount   int    `json:"unread_count"`
}

type message struct {
	ID             int64  `json:"id"`
	Body           string `json:"body"`
	Timestamp      int64  `json:"timestamp"`
	Direction      string `json:"direction"`
	Read           bool   `json:"read"`
	DeliveryStatus string `json:"delivery_status"`
	LastInGroup    bool   `json:"last_in_group"`
}

type contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type sendResult struct {
	State     string   `json:"state"`
	MessageID int64    `json:"message_id"`
	ThreadID  int64    `json:"thread_id"`
	Parts     []string `json:"parts,omitempty"`
}

func main() {
	addrFlag := flag.String("addr", "", "daemon http address (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := &client{
		base:    "http://" + resolveAddr(*addrFlag),
		http:    &http.Client{Timeout: 30 * time.Second},
		jsonOut: *jsonFlag,
	}

	switch args[0] {
	case "conversations":
		c.cmdConversations()
	case "thread":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: smsctl thread <id>")
			os.Exit(1)
		}
		c.cmdThread(args[1])
	case "read":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: smsctl read <id>")
			os.Exit(1)
		}
		c.cmdRead(args[1])
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: smsctl send <address> <body...>")
			os.Exit(1)
		}
		c.cmdSend(args[1], strings.Join(args[2:], " "))
	case "contacts":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: smsctl contacts <query>")
			os.Exit(1)
		}
		c.cmdContacts(args[1])
	case "contacts-add":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: smsctl contacts-add <phone> <name...>")
			os.Exit(1)
		}
		c.cmdContactsAdd(args[1], strings.Join(args[2:], " "))
	case "contacts-import":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: smsctl contacts-import <file.json>")
			os.Exit(1)
		}
		c.cmdContactsImport(args[1])
	case "status":
		c.cmdStatus()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func resolveAddr(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return config.Default().HTTP.Listen
	}
	return cfg.HTTP.Listen
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: smsctl [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  conversations            List conversations")
	fmt.Fprintln(os.Stderr, "  thread <id>              Show messages in a thread")
	fmt.Fprintln(os.Stderr, "  read <id>                Mark a thread read")
	fmt.Fprintln(os.Stderr, "  send <address> <body>    Send a message")
	fmt.Fprintln(os.Stderr, "  contacts <query>         Search contacts")
	fmt.Fprintln(os.Stderr, "  contacts-add <phone> <name>   Add a contact")
	fmt.Fprintln(os.Stderr, "  contacts-import <file>   Import contacts from a JSON file")
	fmt.Fprintln(os.Stderr, "  status                   Show daemon status")
}

type client struct {
	base    string
	http    *http.Client
	jsonOut bool
}

// call performs one API request and unwraps the response envelope.
// Any transport or API failure exits with a message.
func (c *client) call(method, path string, body any) response {
	var reqBody *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fatal(err)
		}
		reqBody = strings.NewReader(string(raw))
	} else {
		reqBody = strings.NewReader("")
	}

	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon at %s: %v\n", c.base, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		fatal(err)
	}
	if !envelope.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", envelope.Message)
		os.Exit(1)
	}
	return envelope
}

func (c *client) cmdConversations() {
	envelope := c.call(http.MethodGet, "/api/conversations", nil)
	if c.jsonOut {
		outputJSON(envelope.Data)
		return
	}
	var convs []conversation
	mustUnmarshal(envelope.Data, &convs)
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, cv := range convs {
		unread := ""
		if cv.UnreadCount > 0 {
			unread = fmt.Sprintf(" [%d unread]", cv.UnreadCount)
		}
		fmt.Printf("%-4d %-20s %s  %s%s\n",
			cv.ThreadID, cv.DisplayName, formatTime(cv.LastTimestamp), cv.Snippet, unread)
	}
}

func (c *client) cmdThread(id string) {
	envelope := c.call(http.MethodGet, "/api/threads/"+id, nil)
	if c.jsonOut {
		outputJSON(envelope.Data)
		return
	}
	var msgs []message
	mustUnmarshal(envelope.Data, &msgs)
	for _, m := range msgs {
		marker := "<"
		if m.Direction != "inbound" {
			marker = ">"
		}
		statusNote := ""
		if m.Direction == "failed" {
			statusNote = " (failed)"
		} else if m.DeliveryStatus == "delivered" {
			statusNote = " (delivered)"
		}
		fmt.Printf("%s %s %s%s\n", marker, formatTime(m.Timestamp), m.Body, statusNote)
		if m.LastInGroup {
			fmt.Println()
		}
	}
}

func (c *client) cmdRead(id string) {
	envelope := c.call(http.MethodPost, "/api/threads/"+id+"/read", nil)
	fmt.Println(envelope.Message)
}

func (c *client) cmdSend(address, body string) {
	envelope := c.call(http.MethodPost, "/api/send", map[string]string{
		"address": address,
		"body":    body,
	})
	if c.jsonOut {
		outputJSON(envelope.Data)
		return
	}
	var result sendResult
	mustUnmarshal(envelope.Data, &result)
	fmt.Printf("Sent: thread %d, message %d (%d part(s))\n",
		result.ThreadID, result.MessageID, len(result.Parts))
}

func (c *client) cmdContacts(query string) {
	envelope := c.call(http.MethodGet, "/api/contacts?q="+url.QueryEscape(query), nil)
	if c.jsonOut {
		outputJSON(envelope.Data)
		return
	}
	var found []contact
	mustUnmarshal(envelope.Data, &found)
	if len(found) == 0 {
		fmt.Println("No contacts found.")
		return
	}
	for _, ct := range found {
		fmt.Printf("%-24s %s\n", ct.Name, ct.Phone)
	}
}

func (c *client) cmdContactsAdd(phone, name string) {
	envelope := c.call(http.MethodPost, "/api/contacts", []map[string]string{
		{"name": name, "phone": phone},
	})
	fmt.Println(envelope.Message)
}

// cmdContactsImport reads a JSON array of {name, phone, photo_ref}
// entries from a file and posts it as one batch.
func (c *client) cmdContactsImport(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}
	var entries []map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		fatal(fmt.Errorf("parse %s: %w", path, err))
	}
	envelope := c.call(http.MethodPost, "/api/contacts", entries)
	fmt.Println(envelope.Message)
}

// cmdStatus reports whatever state the daemon is in; a degraded or
// booting daemon is a valid answer, not a command failure.
func (c *client) cmdStatus() {
	resp, err := c.http.Get(c.base + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon at %s: %v\n", c.base, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		fatal(err)
	}
	if c.jsonOut {
		outputJSON(envelope.Data)
		return
	}
	var data map[string]string
	mustUnmarshal(envelope.Data, &data)
	fmt.Printf("State: %s\n", data["state"])
	if reason := data["reason"]; reason != "" {
		fmt.Printf("Reason: %s\n", reason)
	}
}

func formatTime(millis int64) string {
	return time.UnixMilli(millis).Format("2006-01-02 15:04")
}

func mustUnmarshal(raw json.RawMessage, out any) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		fatal(err)
	}
}

func outputJSON(raw json.RawMessage) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
