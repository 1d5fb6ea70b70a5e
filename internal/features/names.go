package features

// featureNames is the canonical feature order. It is part of the wire
// contract with trained models: the slice is append-only and must never be
// reordered within a model version's lifetime.
var featureNames = []string{
	// User agent
	"ua_length", "ua_bot_keyword", "ua_crawler_keyword",
	"ua_missing_browser", "ua_outdated_browser", "ua_suspicious_pattern",

	// Headers
	"header_count", "has_accept_language", "has_accept_encoding",
	"has_referer", "has_dnt", "has_proxy_headers", "header_anomaly_score",

	// Geo
	"is_datacenter_ip", "geo_missing", "country_risk_score",
	"city_population_log", "timezone_mismatch",

	// Device / browser
	"is_mobile", "is_tablet", "is_desktop", "is_unknown_device",
	"browser_market_share", "os_market_share", "device_browser_mismatch",

	// Behavioral
	"request_hour", "request_day_of_week", "session_duration",
	"page_views_per_minute", "click_pattern_score",

	// Network
	"ip_reputation_score", "asn_type_score", "connection_type_score",
	"tls_fingerprint_common", "tcp_fingerprint_match",

	// Headless detection
	"headless_confidence", "headless_risk_score", "is_automation_framework",
	"headless_detection_count", "is_puppeteer", "is_selenium",
	"is_phantomjs", "is_playwright",

	// Canvas fingerprinting
	"canvas_available", "canvas_consistent", "canvas_entropy",
	"canvas_noise_pattern", "canvas_text_rendering",

	// WebGL fingerprinting
	"webgl_available", "webgl_vendor_suspicious", "webgl_renderer_suspicious",
	"webgl_extension_count", "webgl_parameters_entropy", "webgl_consistent",

	// Audio fingerprinting
	"audio_available", "audio_entropy", "audio_consistent",
	"audio_compressor_dynamics", "audio_oscillator_signature",

	// Screen and hardware
	"screen_resolution_common", "pixel_ratio_standard", "screen_orientation_normal",
	"hardware_concurrency_normal", "device_memory_available", "connection_info_available",

	// Browser environment
	"plugin_count_normal", "language_count_normal", "timezone_consistent",
	"platform_consistent", "cookies_enabled", "dnt_header_present",

	// Performance analysis
	"rendering_time_normal", "canvas_render_speed", "webgl_render_speed",
	"audio_processing_speed", "execution_timing_consistent",

	// Request patterns
	"request_timing_human", "request_frequency_normal", "session_depth_normal",
	"page_sequence_logical", "interaction_pattern_human",

	// HTTP characteristics
	"header_order_normal", "header_casing_standard", "header_completeness",
	"accept_header_realistic", "encoding_preferences_normal",

	// IP and network analysis
	"ip_geolocation_consistent", "asn_residential", "proxy_indicators",
	"tor_exit_node", "vpn_indicators", "datacenter_hosting",

	// TLS/TCP fingerprinting
	"tls_ja3_known", "tcp_window_size_normal", "tcp_options_standard",
	"tls_cipher_order_normal", "tls_extension_order_normal",

	// Time-based analysis
	"request_time_human", "timezone_header_match", "clock_skew_normal",
	"response_timing_analysis", "think_time_realistic",

	// Fingerprint spoofing detection
	"fingerprint_stability", "fingerprint_uniqueness", "spoofing_indicators",
	"inconsistent_properties", "override_detection",

	// Mouse and keyboard patterns
	"mouse_movement_entropy", "click_timing_human", "keyboard_timing_human",
	"scroll_behavior_natural", "focus_change_patterns",

	// JavaScript execution patterns
	"js_execution_timing", "dom_manipulation_speed", "event_handling_normal",
	"memory_usage_pattern", "cpu_usage_normal",

	// Resource loading patterns
	"image_loading_behavior", "css_loading_timing", "font_loading_normal",
	"third_party_requests", "cdn_usage_pattern",

	// Browser automation indicators
	"webdriver_properties", "automation_globals", "debug_properties",
	"extension_interference", "performance_timing_analysis",

	// Content analysis
	"content_interaction_depth", "reading_time_realistic", "scroll_depth_normal",
	"form_filling_speed", "link_following_pattern",

	// Session analysis
	"session_continuity", "cross_page_consistency", "referrer_chain_logical",
	"bounce_rate_normal", "engagement_metrics",

	// Advanced evasion detection
	"rotated_fingerprints", "proxy_rotation_detected", "ua_rotation_detected",
	"timing_attack_resistance", "entropy_manipulation",

	// Machine learning indicators
	"prediction_confidence", "ensemble_agreement", "outlier_score",
	"clustering_distance", "anomaly_detection_score",
	"browser_extension_fingerprint", "font_fingerprint_entropy", "css_feature_detection",
}
