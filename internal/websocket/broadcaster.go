package websocket

import (
	"context"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Ключи групп. Группа — просто имя, за которым хаб держит множество
// живых соединений; никакого отдельного состояния у неё нет.
const BroadcastGroup = "admin-broadcast"

func UserGroup(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func RoomGroup(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}

// Broadcaster — доставка сообщения всем соединениям группы.
// In-process реализация — Hub; RedisBroadcaster добавляет pub/sub,
// чтобы фан-аут работал между несколькими процессами.
type Broadcaster interface {
	Join(group string, c *Client)
	Leave(group string, c *Client)
	Send(group string, payload []byte)
}

const redisChannelPrefix = "classpulse:group:"

type RedisBroadcaster struct {
	hub    *Hub
	rdb    *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRedisBroadcaster(hub *Hub, rdb *redis.Client) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBroadcaster{hub: hub, rdb: rdb, ctx: ctx, cancel: cancel}
}

// Run подписывается на групповые каналы и пересылает сообщения в локальный хаб
func (b *RedisBroadcaster) Run() {
	pubsub := b.rdb.PSubscribe(b.ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			group := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			b.hub.Send(group, []byte(msg.Payload))
		}
	}
}

func (b *RedisBroadcaster) Stop() {
	b.cancel()
}

func (b *RedisBroadcaster) Join(group string, c *Client) {
	b.hub.Join(group, c)
}

func (b *RedisBroadcaster) Leave(group string, c *Client) {
	b.hub.Leave(group, c)
}

// Send публикует в Redis; локальная доставка придёт через подписку,
// как и доставка в остальные процессы
func (b *RedisBroadcaster) Send(group string, payload []byte) {
	if err := b.rdb.Publish(b.ctx, redisChannelPrefix+group, payload).Err(); err != nil {
		log.Printf("Redis publish to %s failed: %v", group, err)
	}
}
