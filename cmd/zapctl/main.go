package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/client"
	"github.com/RiosWesley/whatsapp-mkauth/internal/wa"
)

func main() {
	addrFlag := flag.String("addr", envOr("ZAP_ADDR", "localhost:3000"), "gateway address")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	accountFlag := flag.String("account", os.Getenv("AUTH_ACCOUNT"), "account for send commands")
	passwordFlag := flag.String("password", os.Getenv("AUTH_PASSWORD"), "password for send commands")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(*addrFlag, client.WithCredentials(*accountFlag, *passwordFlag))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "check":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: zapctl check <number>")
			os.Exit(1)
		}
		cmdCheck(ctx, c, args[1], *jsonFlag)
	case "message-status":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: zapctl message-status <id>")
			os.Exit(1)
		}
		cmdMessageStatus(ctx, c, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: zapctl send <number> <text...>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: zapctl [--addr host:port] [--json] [--account a --password p] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                   Show session status (renders the QR while pairing)")
	fmt.Fprintln(os.Stderr, "  check <number>           Check whether a number is on WhatsApp")
	fmt.Fprintln(os.Stderr, "  message-status <id>      Show the delivery state of a sent message")
	fmt.Fprintln(os.Stderr, "  send <number> <text...>  Send a text message")
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	st, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("Status: %s\n", st.Status)
	if st.QR != nil {
		art, err := wa.RenderQR(*st.QR)
		if err != nil {
			fail(err)
		}
		fmt.Println("Scan with WhatsApp:")
		fmt.Print(art)
	}
}

func cmdCheck(ctx context.Context, c *client.Client, number string, jsonOut bool) {
	res, err := c.CheckNumber(ctx, number)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(res)
		return
	}
	if res.Registered {
		fmt.Printf("%s is on WhatsApp\n", res.Number)
	} else {
		fmt.Printf("%s is not on WhatsApp\n", res.Number)
	}
}

func cmdMessageStatus(ctx context.Context, c *client.Client, id string, jsonOut bool) {
	ms, err := c.MessageStatus(ctx, id)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(ms)
		return
	}
	fmt.Printf("ID:      %s\n", ms.ID)
	fmt.Printf("To:      %s\n", ms.To)
	if ms.JID != "" {
		fmt.Printf("Chat:    %s\n", ms.JID)
	}
	fmt.Printf("Type:    %s\n", ms.Type)
	fmt.Printf("Ack:     %d (%s)\n", ms.Ack, ms.AckState)
	fmt.Printf("Updated: %s\n", ms.UpdatedAt)
}

func cmdSend(ctx context.Context, c *client.Client, to, text string, jsonOut bool) {
	id, err := c.SendText(ctx, to, text)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"id": id})
		return
	}
	fmt.Printf("Sent: %s\n", id)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
