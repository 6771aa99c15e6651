package connectivity

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

const defaultTimeout = 2 * time.Second

// DialProbe проверяет доступность сети установкой TCP-соединения с заданным адресом.
// Любая ошибка означает "сеть недоступна".
type DialProbe struct {
	address string
	timeout time.Duration
	dial    func(network, address string, timeout time.Duration) (net.Conn, error)
}

func NewDialProbe(address string, timeout time.Duration) *DialProbe {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DialProbe{address: address, timeout: timeout, dial: net.DialTimeout}
}

// IsReachable реализует ports.ConnectivityProbe
func (p *DialProbe) IsReachable() bool {
	conn, err := p.dial("tcp", p.address, p.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Address возвращает проверяемый адрес
func (p *DialProbe) Address() string {
	return p.address
}

// AddressFromEndpoint выводит host:port из URL эндпоинта каталога
func AddressFromEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("некорректный адрес эндпоинта %q: %w", endpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("в адресе эндпоинта %q нет хоста", endpoint)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("неподдерживаемая схема %q", u.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}

// Static: проба с фиксированным ответом
type Static bool

func (s Static) IsReachable() bool {
	return bool(s)
}
