package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	relayer "github.com/bcnmy/bundler-sub000"
	"github.com/bcnmy/bundler-sub000/config"
	"github.com/bcnmy/bundler-sub000/queue"
)

type Submit struct {
	Config  string `name:"config" short:"c" default:"config.toml" help:"Path to the TOML config." type:"existingfile"`
	Request string `arg:"" help:"JSON file holding the transaction request." type:"existingfile"`
}

func (s *Submit) Run(c *CLIContext) error {
	cfg, err := config.Load(s.Config)
	if err != nil {
		return err
	}
	rdb, err := newRedis(cfg)
	if err != nil {
		return err
	}
	if rdb == nil {
		return errors.New("submit needs Redis.URL, the in-process queue is not reachable from here")
	}
	defer rdb.Close()

	b, err := os.ReadFile(s.Request)
	if err != nil {
		return err
	}
	var req relayer.TransactionRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if req.TransactionID == "" {
		req.TransactionID = uuid.NewString()
	}

	var chainCfg *config.TOMLConfig
	for _, cc := range cfg.EnabledChains() {
		if cc.ID() == req.ChainID {
			chainCfg = cc
		}
	}
	if chainCfg == nil {
		return fmt.Errorf("chain %d is not enabled", req.ChainID)
	}

	q := queue.NewRedisStream(c.Logger, rdb, req.ChainID, *cfg.Redis.ConsumerGroup)
	if err := q.Publish(c.Ctx, req, 0); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, req.TransactionID)
	return nil
}
