package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ICEServer is one entry of an RTCPeerConnection iceServers list.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// WebRTCConfig serves the ICE servers clients use for calls.
type WebRTCConfig struct {
	servers []ICEServer
}

// NewWebRTCConfig takes a comma separated STUN list and an optional TURN
// server with its credentials.
func NewWebRTCConfig(stunServers, turnServer, turnUsername, turnPassword string) *WebRTCConfig {
	var servers []ICEServer

	var stun []string
	for _, s := range strings.Split(stunServers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			stun = append(stun, s)
		}
	}
	if len(stun) > 0 {
		servers = append(servers, ICEServer{URLs: stun})
	}

	if turnServer != "" {
		servers = append(servers, ICEServer{
			URLs:       []string{turnServer},
			Username:   turnUsername,
			Credential: turnPassword,
		})
	}
	if servers == nil {
		servers = []ICEServer{}
	}
	return &WebRTCConfig{servers: servers}
}

func (w *WebRTCConfig) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ice_servers": w.servers})
}
