package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub — реестр живых соединений и in-process broadcaster.
// Соединение при регистрации автоматически попадает в персональную
// группу user:<id>; членство в остальных группах динамическое.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Группы: ключ -> множество соединений
	groups map[string]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		groups:     make(map[string]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub и закрывает оставшиеся соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.groups = make(map[string]map[uuid.UUID]*Client)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.joinUnsafe(UserGroup(client.UserID), client)

	log.Printf("Client registered: %s (User: %s)", client.ID, client.UserID)
}

// unregisterClient убирает соединение из всех групп до закрытия канала,
// чтобы ни один последующий broadcast не целился в мёртвый handle
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for group := range client.Groups {
		h.leaveUnsafe(group, client)
	}

	delete(h.clients, client.ID)
	close(client.Send)

	log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)
}

// Join идемпотентно добавляет соединение в группу
func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinUnsafe(group, c)
}

func (h *Hub) Leave(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveUnsafe(group, c)
}

func (h *Hub) joinUnsafe(group string, c *Client) {
	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[uuid.UUID]*Client)
	}
	h.groups[group][c.ID] = c

	c.mu.Lock()
	c.Groups[group] = true
	c.mu.Unlock()
}

func (h *Hub) leaveUnsafe(group string, c *Client) {
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(h.groups, group)
	}

	c.mu.Lock()
	delete(c.Groups, group)
	c.mu.Unlock()
}

// Send доставляет payload всем членам группы. Отказ одного получателя
// (переполненный буфер, умершее соединение) не прерывает доставку
// остальным — только лог.
func (h *Hub) Send(group string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[group] {
		select {
		case client.Send <- payload:
		default:
			log.Printf("Client %s send channel full, dropping frame for group %s", client.ID, group)
		}
	}
}

// SendExcept — то же, но без одного соединения (например, инициатора)
func (h *Hub) SendExcept(group string, payload []byte, excludeID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[group] {
		if client.ID == excludeID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("Client %s send channel full, dropping frame for group %s", client.ID, group)
		}
	}
}

// GroupUsers возвращает уникальных пользователей группы
func (h *Hub) GroupUsers(group string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, client := range h.groups[group] {
		seen[client.UserID] = true
	}

	users := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	return users
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- pingFrame:
		default:
		}
	}
}

var pingFrame = []byte(`{"type":"ping"}`)
