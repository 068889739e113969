package integration

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/gochat-ircd/test/testhelpers"
)

// expectNothing round-trips a PING and fails if a line containing forbidden
// arrives before the PONG.
func expectNothing(t *testing.T, conn testhelpers.LineConn, forbidden string) {
	t.Helper()
	send(t, conn, "PING :sync")
	for {
		line, err := conn.ReadLine()
		if err != nil {
			t.Fatalf("Failed while waiting for PONG: %v", err)
		}
		if strings.Contains(line, forbidden) {
			t.Fatalf("Unexpected line: %q", line)
		}
		if strings.Contains(line, " PONG ") && strings.HasSuffix(line, ":sync") {
			return
		}
	}
}

func TestMultipleClientsMessageExchange(t *testing.T) {
	gw := testhelpers.StartIRCServer(t, nil)

	const numClients = 5
	clients := make([]testhelpers.LineConn, numClients)
	for i := range clients {
		if i%2 == 0 {
			clients[i] = dialTCP(t, gw)
		} else {
			clients[i] = dialWS(t, gw)
		}
		testhelpers.Register(t, clients[i], fmt.Sprintf("user%d", i))
		testhelpers.Join(t, clients[i], "#lobby")
	}

	for i, sender := range clients {
		send(t, sender, fmt.Sprintf("PRIVMSG #lobby :message from user%d", i))
	}

	for i, receiver := range clients {
		for j := range clients {
			if i == j {
				continue
			}
			want := fmt.Sprintf(":user%d!user%d@", j, j)
			line := testhelpers.ExpectLine(t, receiver, want)
			if !strings.HasSuffix(line, fmt.Sprintf("PRIVMSG #lobby :message from user%d", j)) {
				t.Errorf("user%d received unexpected line: %q", i, line)
			}
		}
		expectNothing(t, receiver, fmt.Sprintf("message from user%d", i))
	}
}

func TestQuitReachesEveryChannelPeer(t *testing.T) {
	for _, peers := range []int{0, 1, 3, 6} {
		t.Run(fmt.Sprintf("%d peers", peers), func(t *testing.T) {
			gw := testhelpers.StartIRCServer(t, nil)

			quitter := dialTCP(t, gw)
			testhelpers.Register(t, quitter, "quitter")
			testhelpers.Join(t, quitter, "#a")
			testhelpers.Join(t, quitter, "#b")

			others := make([]testhelpers.LineConn, peers)
			for i := range others {
				others[i] = dialTCP(t, gw)
				testhelpers.Register(t, others[i], fmt.Sprintf("peer%d", i))
				// Peers share one or both channels; each must hear the QUIT once.
				testhelpers.Join(t, others[i], "#a")
				if i%2 == 0 {
					testhelpers.Join(t, others[i], "#b")
				}
			}

			outsider := dialTCP(t, gw)
			testhelpers.Register(t, outsider, "outsider")
			testhelpers.Join(t, outsider, "#elsewhere")

			send(t, quitter, "QUIT :bye all")
			testhelpers.ExpectLine(t, quitter, "ERROR :Closing Link: quitter[127.0.0.1] (bye all)")
			testhelpers.ExpectClosed(t, quitter, "")

			for i, peer := range others {
				line := testhelpers.ExpectLine(t, peer, " QUIT ")
				if line != ":quitter!quitter@127.0.0.1 QUIT :bye all" {
					t.Errorf("peer%d received unexpected QUIT: %q", i, line)
				}
				expectNothing(t, peer, " QUIT ")
			}
			expectNothing(t, outsider, " QUIT ")
		})
	}
}

func TestMultipleClientsConcurrentOperations(t *testing.T) {
	gw := testhelpers.StartIRCServer(t, nil)

	const numClients = 20
	var wg sync.WaitGroup
	errs := make(chan error, numClients)

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs <- runShortSession(gw, id)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}

	deadline := time.Now().Add(testhelpers.DefaultTimeout)
	for gw.Server.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected all connections released, %d remain", gw.Server.ConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if users := gw.Server.Registry().Counts().Users; users != 0 {
		t.Errorf("Expected empty registry, %d users remain", users)
	}
}

// runShortSession connects, registers, joins a shared channel and quits.
func runShortSession(gw *testhelpers.Gateway, id int) error {
	conn, err := testhelpers.DialTCP(gw.Server.Addr())
	if err != nil {
		return fmt.Errorf("client %d: connect: %w", id, err)
	}
	defer func() { _ = conn.Close() }()

	nick := fmt.Sprintf("busy%d", id)
	lines := []string{
		"NICK " + nick,
		"USER " + nick + " 0 * :" + nick,
		"JOIN #busy",
		"PRIVMSG #busy :hi",
		"QUIT :done",
	}
	for _, line := range lines {
		if err := conn.Send(line); err != nil {
			return fmt.Errorf("client %d: send %q: %w", id, line, err)
		}
	}

	for {
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("client %d: connection ended before ERROR: %w", id, err)
		}
		if strings.HasPrefix(line, ":"+testhelpers.TestHostname+" ERROR ") {
			return nil
		}
	}
}

func TestMultipleClientsEdgeCases(t *testing.T) {
	t.Run("nick collision across transports", func(t *testing.T) {
		gw := testhelpers.StartIRCServer(t, nil)
		first := dialTCP(t, gw)
		testhelpers.Register(t, first, "taken")

		second := dialWS(t, gw)
		send(t, second, "NICK taken")
		line := testhelpers.ExpectLine(t, second, " 433 ")
		if !strings.HasSuffix(line, "taken :Nickname is already in use") {
			t.Errorf("Unexpected collision reply: %q", line)
		}
	})

	t.Run("nick freed after disconnect", func(t *testing.T) {
		gw := testhelpers.StartIRCServer(t, nil)
		first := dialTCP(t, gw)
		testhelpers.Register(t, first, "reused")
		send(t, first, "QUIT")
		testhelpers.ExpectClosed(t, first, "")

		deadline := time.Now().Add(testhelpers.DefaultTimeout)
		for {
			if _, ok := gw.Server.Registry().LookupUser("reused"); !ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("Nick was not released")
			}
			time.Sleep(10 * time.Millisecond)
		}

		second := dialTCP(t, gw)
		testhelpers.Register(t, second, "reused")
	})

	t.Run("message to missing nick", func(t *testing.T) {
		gw := testhelpers.StartIRCServer(t, nil)
		conn := dialTCP(t, gw)
		testhelpers.Register(t, conn, "lonely")

		send(t, conn, "PRIVMSG nobody :hello?")
		line := testhelpers.ExpectLine(t, conn, " 401 ")
		if !strings.HasSuffix(line, "nobody :No such nick/channel") {
			t.Errorf("Unexpected reply: %q", line)
		}
	})
}
