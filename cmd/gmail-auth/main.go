package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"

	"opportunity-radar/internal/adapters/gmail"
	"opportunity-radar/internal/infra/config"
	applog "opportunity-radar/internal/infra/log"
)

// Для desktop-клиента Google достаточно loopback-адреса; код копируется из адресной строки.
const redirectURL = "http://localhost"

func main() {
	cfg, err := config.LoadEnv()
	logger := applog.NewLogger("prod")
	if err != nil {
		logger.Fatal().Err(err).Msg("gmail-auth: неверная конфигурация")
	}
	if cfg.Gmail.ClientID == "" || cfg.Gmail.ClientSecret == "" {
		logger.Fatal().Msg("gmail-auth: нужны GMAIL_CLIENT_ID и GMAIL_CLIENT_SECRET")
	}

	oauthCfg := gmail.OAuthConfig(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, redirectURL)
	url := oauthCfg.AuthCodeURL("radar", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Println("Откройте ссылку, разрешите доступ и вставьте параметр code из адреса перенаправления:")
	fmt.Println(url)
	fmt.Print("code: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		logger.Fatal().Err(err).Msg("gmail-auth: не удалось прочитать код")
	}
	token, err := oauthCfg.Exchange(context.Background(), strings.TrimSpace(code))
	if err != nil {
		logger.Fatal().Err(err).Msg("gmail-auth: обмен кода не удался")
	}
	if token.RefreshToken == "" {
		logger.Fatal().Msg("gmail-auth: refresh token не выдан, отзовите доступ и повторите")
	}
	fmt.Printf("GMAIL_REFRESH_TOKEN=%s\n", token.RefreshToken)
}
