package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LiveCanvas/internal/board"
	"LiveCanvas/internal/config"
	"LiveCanvas/internal/export"
	"LiveCanvas/internal/net"
	"LiveCanvas/internal/session"
	"LiveCanvas/internal/state"
)

func main() {
	cfg := config.Load()

	hostMode := flag.Bool("host", false, "run the hub for this canvas")
	joinAddr := flag.String("join", "", "hub address to join (host:port); discovered via mDNS when empty")
	name := flag.String("name", "Guest", "display name for this session")
	boardFile := flag.String("board", "board.json", "hub document file (host mode)")
	exportPath := flag.String("export", "", "connect, export the canvas to this PDF, and exit")
	flag.Parse()

	if *hostMode {
		runHub(cfg, *boardFile)
		return
	}

	addr := *joinAddr
	if addr == "" {
		addr = discoverHub(cfg)
	}
	runClient(cfg, addr, *name, *exportPath)
}

func runHub(cfg config.Config, boardFile string) {
	log.Println("Starting as HOST")
	hub := net.NewHub()
	if err := hub.LoadFrom(boardFile); err != nil {
		log.Printf("Starting with an empty canvas (%v)", err)
	}

	mdnsServer, err := net.Advertise(cfg.Hub.Port)
	if err != nil {
		log.Printf("mDNS advertise failed, peers must join by address: %v", err)
	} else {
		defer mdnsServer.Shutdown()
	}

	if ip, err := net.OutgoingIP(); err == nil {
		log.Printf("Share link: %s:%d", ip, cfg.Hub.Port)
	}

	// Save the document on shutdown.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		if err := hub.SaveTo(boardFile); err != nil {
			log.Printf("Failed to save board: %v", err)
		}
		os.Exit(0)
	}()

	log.Printf("Hub listening on port %d", cfg.Hub.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Hub.Port), hub.Router()); err != nil {
		log.Fatalf("Hub failed: %v", err)
	}
}

func discoverHub(cfg config.Config) string {
	found := make(chan string, 1)
	go func() {
		_ = net.Browse(func(addr string) {
			select {
			case found <- addr:
			default:
			}
		})
	}()
	select {
	case addr := <-found:
		log.Printf("Discovered hub at %s", addr)
		return addr
	case <-time.After(2 * time.Second):
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Hub.Port)
		log.Printf("No hub discovered, trying %s", addr)
		return addr
	}
}

func runClient(cfg config.Config, addr, name, exportPath string) {
	log.Println("Starting as CLIENT")
	user := session.NewUser(name)

	gw, err := net.Dial(addr, user)
	if err != nil {
		log.Fatalf("Could not reach hub: %v", err)
	}
	defer gw.Close()

	editor := board.New(user, gw, board.Options{
		StaleAfter:     cfg.Lock.StaleAfter,
		RenewOnAcquire: cfg.Lock.RenewOnAcquire,
		SyncThrottle:   cfg.Sync.Throttle,
		CursorThrottle: cfg.Cursor.Throttle,
		MinShapeSize:   cfg.Shape.MinSize,
	})

	initDone := make(chan struct{}, 1)
	gw.OnInit = func(shapes []state.Shape, users []session.User) {
		editor.HandleInit(shapes, users)
		select {
		case initDone <- struct{}{}:
		default:
		}
	}
	gw.OnShape = editor.HandleRemoteShape
	gw.OnDelete = editor.HandleRemoteDelete
	gw.OnCursor = editor.HandleRemoteCursor
	gw.OnPresence = editor.HandlePresence
	gw.OnDisconnect = func(err error) {
		log.Printf("Disconnected from hub: %v", err)
	}
	go gw.Run()

	select {
	case <-initDone:
	case <-time.After(5 * time.Second):
		log.Fatal("Timed out waiting for the document replay")
	}

	if exportPath != "" {
		if err := export.PDF(exportPath, editor.Cache().All()); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Printf("Exported %d shapes to %s", editor.Cache().Len(), exportPath)
		return
	}

	// Headless session: log canvas activity until interrupted. A rendering
	// surface would subscribe the same way and drive the pointer interface.
	editor.Cache().Subscribe(func(e state.Event) {
		switch e.Type {
		case state.EventUpsert:
			log.Printf("[CANVAS] %s %s at (%.0f,%.0f) %s", e.Shape.Type, e.Shape.Name, e.Shape.X, e.Shape.Y, e.Shape.DimensionLabel())
		case state.EventRemove:
			log.Printf("[CANVAS] removed %s", e.ID)
		}
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Println("Bye")
}
