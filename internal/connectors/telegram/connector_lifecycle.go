package telegram

import (
	"context"
	"time"
)

func (c *Connector) Start(ctx context.Context) error {
	c.reportStarting("starting")
	if c.client.token == "" {
		c.reportDisabled("token missing")
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.gateway == nil || c.links == nil {
		c.reportDisabled("gateway missing")
		c.logger.Info("connector disabled, gateway missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "api_base", c.client.apiBase, "mode", c.mode)
	if me, err := c.client.GetMe(ctx); err == nil {
		c.setUsername(me.Username)
		if me.Username != "" {
			c.logger.Info("telegram bot identity loaded", "username", me.Username)
		}
	} else {
		c.logger.Warn("telegram bot username lookup failed", "error", err)
	}
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("telegram command sync failed", "error", err)
		} else {
			c.logger.Info("telegram commands synced")
		}
	}

	if c.mode == ModeWebhook {
		return c.runWebhook(ctx)
	}
	return c.runPolling(ctx)
}

func (c *Connector) runWebhook(ctx context.Context) error {
	if c.webhookURL != "" {
		if err := c.client.SetWebhook(ctx, c.webhookURL, c.webhookSecret); err != nil {
			c.reportDegrade("webhook registration failed", err)
			c.logger.Error("webhook registration failed", "error", err)
		} else {
			c.logger.Info("webhook registered", "url", c.webhookURL)
		}
	}
	c.reportBeat("waiting for webhook updates")
	<-ctx.Done()
	c.reportStopped()
	c.logger.Info("connector stopped")
	return nil
}

func (c *Connector) runPolling(ctx context.Context) error {
	// getUpdates is rejected while a webhook is registered.
	if err := c.client.DeleteWebhook(ctx); err != nil {
		c.logger.Warn("telegram deleteWebhook failed", "error", err)
	}
	c.reportBeat("polling updates")
	for {
		if ctx.Err() != nil {
			c.reportStopped()
			c.logger.Info("connector stopped")
			return nil
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			c.reportDegrade("poll failed", err)
			c.logger.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				c.reportStopped()
				c.logger.Info("connector stopped")
				return nil
			case <-time.After(1500 * time.Millisecond):
			}
		} else {
			c.reportBeat("poll cycle ok")
		}
	}
}

func (c *Connector) pollOnce(ctx context.Context) error {
	c.mu.RLock()
	offset := c.offset
	c.mu.RUnlock()

	updates, err := c.client.GetUpdates(ctx, offset, c.pollSeconds)
	if err != nil {
		return err
	}
	for _, update := range updates {
		c.mu.Lock()
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		c.mu.Unlock()
		c.HandleUpdate(ctx, "poll", update)
	}
	return nil
}

func (c *Connector) reportStarting(message string) {
	if c.reporter != nil {
		c.reporter.Starting(componentName, message)
	}
}

func (c *Connector) reportBeat(message string) {
	if c.reporter != nil {
		c.reporter.Beat(componentName, message)
	}
}

func (c *Connector) reportDegrade(message string, err error) {
	if c.reporter != nil {
		c.reporter.Degrade(componentName, message, err)
	}
}

func (c *Connector) reportDisabled(message string) {
	if c.reporter != nil {
		c.reporter.Disabled(componentName, message)
	}
}

func (c *Connector) reportStopped() {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
}
