// Package tcp 提供只读的 TCP 推送网关：首行发送 JWT，之后按行接收投递通道中的事件
package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"go-dm/internal/auth"
	"go-dm/internal/cache"
)

type Server struct {
	Addr      string
	JWTSecret string
	Redis     *redis.Client
	// AuthTimeout 等待首行令牌的时间
	AuthTimeout time.Duration
}

func (s *Server) Start(ctx context.Context) error {
	if s.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	go func() { <-ctx.Done(); ln.Close() }()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()
	timeout := s.AuthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	_ = c.SetReadDeadline(time.Now().Add(timeout))
	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		return
	}
	cl, err := auth.ParseJWT(s.JWTSecret, strings.TrimSpace(line))
	if err != nil {
		_, _ = c.Write([]byte(`{"action":"error","data":{"code":"UNAUTHENTICATED"}}` + "\n"))
		return
	}
	_ = c.SetReadDeadline(time.Time{})
	entry := log.WithFields(log.Fields{"user": cl.UserID, "remote": c.RemoteAddr().String()})
	entry.Info("TCP connected")

	sub := s.Redis.Subscribe(ctx, cache.DeliverChannel(cl.UserID))
	defer sub.Close()
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			entry.WithError(err).Debug("TCP subscription closed")
			return
		}
		_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if _, err := c.Write([]byte(msg.Payload + "\n")); err != nil {
			entry.WithError(err).Info("TCP disconnected")
			return
		}
	}
}
