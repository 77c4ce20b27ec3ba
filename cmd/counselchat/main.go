// Command counselchat is the terminal client: it resolves an identity,
// joins the shared chat, and drives the booking flow for either role.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"counselchat/internal/config"
	"counselchat/internal/coordinator"
	"counselchat/internal/identity"
	"counselchat/internal/protocol"
	"counselchat/internal/store"
	"counselchat/internal/transport"
	"counselchat/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		userID         = flag.String("user", "", "stable user id")
		name           = flag.String("name", "", "display name")
		email          = flag.String("email", "", "email address")
		role           = flag.String("role", "", "customer or counsellor")
		specialization = flag.String("specialization", "", "counsellor specialization")
	)
	flag.Parse()

	cfg := config.LoadFromEnv()
	logger := zap.NewNop()

	principal := types.Principal{
		types.AttrSub:   *userID,
		types.AttrName:  *name,
		types.AttrEmail: *email,
		types.AttrRole:  *role,
	}
	if *specialization != "" {
		principal[types.AttrSpecialization] = *specialization
	}

	storeClient := store.NewClient(cfg.Store.BaseURL, logger)
	resolver := identity.NewResolver(storeClient, logger)

	ctx := context.Background()
	who, err := resolver.Resolve(ctx, principal)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	endpoint, err := transport.Endpoint(cfg.Broker.BaseURL, who.UserID)
	if err != nil {
		return fmt.Errorf("broker endpoint: %w", err)
	}
	channel := transport.Dial(endpoint, transport.Options{
		ReconnectInterval: cfg.Session.ReconnectInterval,
		Logger:            logger,
	})

	session := protocol.NewSession(who, channel, logger)
	session.Notify(printEnvelope)
	if err := session.Start(); err != nil {
		_ = channel.Close()
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	coord := coordinator.New(storeClient, who, logger)

	fmt.Printf("connected as %s (%s)\n", who.DisplayName, who.Role)
	switch who.Role {
	case types.RoleCustomer:
		return customerLoop(ctx, storeClient, coord, session)
	case types.RoleCounsellor:
		return counsellorLoop(ctx, cfg, storeClient, coord, session)
	default:
		return types.ErrInvalidRole
	}
}

func printEnvelope(env types.Envelope) {
	switch env.Type {
	case types.EnvelopeJoin:
		fmt.Printf("* %s joined\n", env.Sender)
	case types.EnvelopeLeave:
		fmt.Printf("* %s left\n", env.Sender)
	case types.EnvelopeChat:
		fmt.Printf("%s: %s\n", env.Sender, env.Content)
	}
}

// customerLoop lists counsellors, sends one booking request, and then
// chats until EOF.
func customerLoop(ctx context.Context, storeClient *store.Client, coord *coordinator.Coordinator, session *protocol.Session) error {
	counsellors, err := storeClient.ListCounsellors(ctx)
	if err != nil {
		return fmt.Errorf("list counsellors: %w", err)
	}
	if len(counsellors) == 0 {
		fmt.Println("no counsellors registered yet")
	}
	for i, c := range counsellors {
		fmt.Printf("  [%d] %s (%s)\n", i+1, c.Name, c.Specialization)
	}
	fmt.Println("commands: /request <n>, /appointments, /quit, anything else is chat")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return nil
		case line == "/appointments":
			printAppointments(storeClient.ListCustomerAppointments(ctx, session.Identity().UserID))
		case strings.HasPrefix(line, "/request "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/request ")))
			if err != nil || n < 1 || n > len(counsellors) {
				fmt.Println("usage: /request <n> where n is a listed counsellor")
				continue
			}
			if err := coord.Request(ctx, counsellors[n-1]); err != nil {
				fmt.Printf("request failed: %v\n", err)
				continue
			}
			fmt.Printf("request sent to %s\n", counsellors[n-1].Name)
		default:
			if err := session.Send(line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

// counsellorLoop polls for pending requests and accepts/schedules them
// between chat messages.
func counsellorLoop(ctx context.Context, cfg *config.Config, storeClient *store.Client, coord *coordinator.Coordinator, session *protocol.Session) error {
	poller := coordinator.NewPoller(storeClient, cfg.Session.PollInterval, nil)
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go poller.Run(pollCtx)

	fmt.Println("commands: /requests, /accept <n>, /schedule <date> <time>, /appointments, /quit, anything else is chat")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return nil
		case line == "/requests":
			pending := poller.Pending()
			if len(pending) == 0 {
				fmt.Println("no pending requests")
			}
			for i, req := range pending {
				fmt.Printf("  [%d] %s (%s)\n", i+1, req.CustomerName, req.Session)
			}
		case line == "/appointments":
			printAppointments(storeClient.ListCounsellorAppointments(ctx, session.Identity().UserID))
		case strings.HasPrefix(line, "/accept "):
			pending := poller.Pending()
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/accept ")))
			if err != nil || n < 1 || n > len(pending) {
				fmt.Println("usage: /accept <n> where n is a pending request")
				continue
			}
			if err := coord.Accept(pending[n-1]); err != nil {
				fmt.Printf("accept failed: %v\n", err)
				continue
			}
			fmt.Printf("chat session active with %s\n", pending[n-1].CustomerName)
		case strings.HasPrefix(line, "/schedule "):
			fields := strings.Fields(strings.TrimPrefix(line, "/schedule "))
			if len(fields) != 2 {
				fmt.Println("usage: /schedule <date> <time>, e.g. /schedule 2025-06-01 10:00")
				continue
			}
			scheduleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := coord.Schedule(scheduleCtx, fields[0], fields[1])
			cancel()
			if err != nil {
				fmt.Printf("schedule failed: %v\n", err)
				continue
			}
			fmt.Printf("appointment confirmed for %s %s\n", fields[0], fields[1])
		default:
			if err := session.Send(line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

func printAppointments(appts []types.Appointment, err error) {
	if err != nil {
		fmt.Printf("list appointments failed: %v\n", err)
		return
	}
	if len(appts) == 0 {
		fmt.Println("no confirmed appointments")
		return
	}
	for _, a := range appts {
		fmt.Printf("  %s %s  %s with %s (%s)\n", a.SessionDate, a.SessionTime, a.CustomerName, a.CounsellorName, a.Session)
	}
}
