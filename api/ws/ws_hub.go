package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zlnvch/layerdeck/cache"
	"github.com/zlnvch/layerdeck/service"
)

const maxConnectionsPerOwner = 5

type claim struct {
	client   *Client
	designId string
	reply    chan bool
}

// Hub tracks open sessions. A design is edited by at most one session at a
// time.
type Hub struct {
	layerdeckCache  cache.LayerdeckCache
	OpenCh          chan *Client
	CloseCh         chan *Client
	ClaimCh         chan claim
	DesignDeletedCh chan string
	ownerToClients  map[string]map[*Client]struct{}
	designToClient  map[string]*Client
	clientToDesign  map[*Client]string
}

func NewHub(layerdeckCache cache.LayerdeckCache) *Hub {
	return &Hub{
		layerdeckCache:  layerdeckCache,
		OpenCh:          make(chan *Client, 256),
		CloseCh:         make(chan *Client, 256),
		ClaimCh:         make(chan claim),
		DesignDeletedCh: make(chan string, 64),
		ownerToClients:  make(map[string]map[*Client]struct{}),
		designToClient:  make(map[string]*Client),
		clientToDesign:  make(map[*Client]string),
	}
}

// Claim binds designId to the client, releasing the design it held before.
// It reports false when another session already holds the design.
func (h *Hub) Claim(ctx context.Context, client *Client, designId string) bool {
	reply := make(chan bool, 1)
	select {
	case h.ClaimCh <- claim{client: client, designId: designId, reply: reply}:
	case <-ctx.Done():
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) release(client *Client) {
	if designId, ok := h.clientToDesign[client]; ok {
		if h.designToClient[designId] == client {
			delete(h.designToClient, designId)
		}
		delete(h.clientToDesign, client)
	}
}

func (h *Hub) Run(shutdownCtx context.Context) {
	for {
		select {
		case client := <-h.OpenCh:
			if _, ok := h.ownerToClients[client.owner.Id]; !ok {
				h.ownerToClients[client.owner.Id] = make(map[*Client]struct{})
			}

			if len(h.ownerToClients[client.owner.Id]) >= maxConnectionsPerOwner {
				log.Printf("Owner %s reached max connections (%d)", client.owner.Id, maxConnectionsPerOwner)
				client.Kick("too many connections")
				continue
			}

			h.ownerToClients[client.owner.Id][client] = struct{}{}

		case client := <-h.CloseCh:
			h.release(client)
			delete(h.ownerToClients[client.owner.Id], client)
			if len(h.ownerToClients[client.owner.Id]) == 0 {
				delete(h.ownerToClients, client.owner.Id)
			}

		case c := <-h.ClaimCh:
			if holder, ok := h.designToClient[c.designId]; ok && holder != c.client {
				c.reply <- false
				continue
			}
			h.release(c.client)
			h.designToClient[c.designId] = c.client
			h.clientToDesign[c.client] = c.designId
			c.reply <- true

		case designId := <-h.DesignDeletedCh:
			if client, ok := h.designToClient[designId]; ok {
				client.Kick("design deleted")
				h.release(client)
			}

		case <-shutdownCtx.Done():
			return
		}
	}
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.layerdeckCache.Subscribe(shutdownCtx, service.DesignDeletedChannel, func(message []byte) {
		var msg service.DesignDeletedMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			h.DesignDeletedCh <- msg.DesignId
		} else {
			log.Printf("Failed to unmarshal %s message: %v", service.DesignDeletedChannel, err)
		}
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to %s: %v", service.DesignDeletedChannel, err)
		return err
	}
	return nil
}
