package venue

import (
	"context"
	"fmt"
	"sync"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"order-router/internal/cred"
	"order-router/internal/order"
)

// Registry 按场所标识解析适配器。
// 加密货币场所在首次使用时基于 ccxt 惰性构造并缓存；
// 证券场所的接入协议不在本服务内实现，须通过 Register 注入。
type Registry struct {
	provider cred.Provider
	logger   *zap.Logger

	mu       sync.Mutex
	cache    map[string]Adapter
	external map[string]Adapter
}

// NewRegistry 创建适配器注册表。
func NewRegistry(provider cred.Provider, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		provider: provider,
		logger:   logger,
		cache:    make(map[string]Adapter),
		external: make(map[string]Adapter),
	}
}

// Register 注入外部构造的适配器（证券场所或测试替身）。
func (r *Registry) Register(v order.Venue, class order.InstrumentClass, slot int, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external[registryKey(v, class, slot)] = adapter
}

// Adapter 解析 (场所, 标的类别, 槽位) 对应的适配器。
func (r *Registry) Adapter(ctx context.Context, v order.Venue, class order.InstrumentClass, slot int) (Adapter, error) {
	key := registryKey(v, class, slot)

	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.external[key]; ok {
		return adapter, nil
	}
	if adapter, ok := r.cache[key]; ok {
		return adapter, nil
	}

	if !v.IsCrypto() {
		return nil, fmt.Errorf("%w: %s（槽位 %d 未注册适配器）", ErrUnsupportedVenue, v, slot)
	}

	creds, err := r.provider.Credentials(ctx, v, slot)
	if err != nil {
		return nil, fmt.Errorf("venue: 获取 %s 凭证失败: %w", v, err)
	}

	client, err := newCCXTClient(v, class, creds)
	if err != nil {
		return nil, err
	}

	adapter := NewCCXTAdapter(v, class, client, r.logger)
	r.cache[key] = adapter
	r.logger.Info("已构造交易所适配器",
		zap.String("venue", string(v)),
		zap.String("class", string(class)),
	)
	return adapter, nil
}

func registryKey(v order.Venue, class order.InstrumentClass, slot int) string {
	return fmt.Sprintf("%s|%s|%d", v, class, slot)
}

func newCCXTClient(v order.Venue, class order.InstrumentClass, creds cred.Credentials) (marketClient, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference":           true,
			"createMarketBuyOrderRequiresPrice": false,
		},
	}
	if creds.APIKey != "" {
		userConfig["apiKey"] = creds.APIKey
	}
	if creds.APISecret != "" {
		userConfig["secret"] = creds.APISecret
	}
	if creds.Passphrase != "" {
		userConfig["password"] = creds.Passphrase
	}
	if class == order.ClassFutures {
		userConfig["options"].(map[string]interface{})["defaultType"] = "swap"
	}

	switch v {
	case order.VenueUpbit:
		ex := ccxt.NewUpbit(userConfig)
		if creds.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case order.VenueBinance:
		if class == order.ClassFutures {
			ex := ccxt.NewBinanceusdm(userConfig)
			if creds.UseSandbox {
				ex.SetSandboxMode(true)
			}
			return ex, nil
		}
		ex := ccxt.NewBinance(userConfig)
		if creds.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case order.VenueBybit:
		ex := ccxt.NewBybit(userConfig)
		if creds.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case order.VenueBitget:
		ex := ccxt.NewBitget(userConfig)
		if creds.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	case order.VenueOKX:
		ex := ccxt.NewOkx(userConfig)
		if creds.UseSandbox {
			ex.SetSandboxMode(true)
		}
		return ex, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedVenue, v)
}
