package http

// The functions below send one request through a temporary session that
// is closed afterwards. Use a Session to reuse connections and cookies.

func Get(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodGet, url, opts)
}

func Post(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodPost, url, opts)
}

func Put(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodPut, url, opts)
}

func Delete(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodDelete, url, opts)
}

func Patch(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodPatch, url, opts)
}

func Head(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodHead, url, opts)
}

func Options(url string, opts ...RequestOption) (*Response, error) {
	return oneShot(MethodOptions, url, opts)
}

func oneShot(method, url string, opts []RequestOption) (*Response, error) {
	s, err := NewSession()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.do(method, url, opts)
}
