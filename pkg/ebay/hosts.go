package ebay

// 环境常量
// environment 决定 API Host，绝不允许 sandbox Token 打到生产环境
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Sandbox 地址
const (
	SandboxAuthURL    = "https://auth.sandbox.ebay.com/oauth2/authorize"
	SandboxTokenURL   = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	SandboxAPIBaseURL = "https://api.sandbox.ebay.com"
)

// Production 地址
const (
	ProductionAuthURL    = "https://auth.ebay.com/oauth2/authorize"
	ProductionTokenURL   = "https://api.ebay.com/identity/v1/oauth2/token"
	ProductionAPIBaseURL = "https://api.ebay.com"
)

// 核心业务端点 (相对 APIBaseURL)
const (
	BulkMigratePath        = "/sell/inventory/v1/bulk_migrate_listing"
	BulkUpdateQuantityPath = "/sell/inventory/v1/bulk_update_price_quantity"
	OfferPath              = "/sell/inventory/v1/offer"
	IdentityPath           = "/commerce/identity/v1/user/"
)

// 已知的 eBay 错误码
const (
	// ErrIDMissingLocale 批量迁移时缺少 locale 的校验错误
	// 官方没有文档化，只能靠 Accept-Language 头重试绕过
	ErrIDMissingLocale = 25709
)

// DefaultScopes 库存管理所需的默认授权范围
var DefaultScopes = []string{
	"https://api.ebay.com/oauth/api_scope",
	"https://api.ebay.com/oauth/api_scope/sell.inventory",
	"https://api.ebay.com/oauth/api_scope/sell.inventory.readonly",
	"https://api.ebay.com/oauth/api_scope/sell.account",
	"https://api.ebay.com/oauth/api_scope/sell.account.readonly",
	"https://api.ebay.com/oauth/api_scope/commerce.identity.readonly",
}

// Endpoints 一个环境对应的完整入口地址
type Endpoints struct {
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// EndpointsFor 根据环境解析入口地址
// 非法环境一律按 sandbox 处理，避免误打生产
func EndpointsFor(environment string) Endpoints {
	if environment == EnvProduction {
		return Endpoints{
			AuthURL:    ProductionAuthURL,
			TokenURL:   ProductionTokenURL,
			APIBaseURL: ProductionAPIBaseURL,
		}
	}
	return Endpoints{
		AuthURL:    SandboxAuthURL,
		TokenURL:   SandboxTokenURL,
		APIBaseURL: SandboxAPIBaseURL,
	}
}
