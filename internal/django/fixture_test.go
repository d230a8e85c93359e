package django

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const settingsPy = `"""
Django settings for website project.

For more information on this file, see
https://docs.djangoproject.com/en/4.2/topics/settings/
"""

from pathlib import Path
import os

# Build paths inside the project like this: BASE_DIR / 'subdir'.
BASE_DIR = Path(__file__).resolve().parent.parent

SECRET_KEY = 'django-insecure-test'

DEBUG = True

ALLOWED_HOSTS = []

INSTALLED_APPS = [
    'blog.apps.BlogConfig',
    'django.contrib.admin',
    'django.contrib.auth',
    'django.contrib.staticfiles',
]

ROOT_URLCONF = 'website.urls'

TEMPLATES = [
    {
        'BACKEND': 'django.template.backends.django.DjangoTemplates',
        'DIRS': [BASE_DIR / 'templates'],
        'APP_DIRS': True,
        'OPTIONS': {
            'context_processors': [
                'django.template.context_processors.debug',
                'django.template.context_processors.request',
            ],
        },
    },
]

DATABASES = {
    'default': {
        'ENGINE': 'django.db.backends.sqlite3',
        'NAME': BASE_DIR / 'db.sqlite3',
    }
}

STATIC_URL = 'static/'
STATICFILES_DIRS = [
    BASE_DIR / "static",
]

DEFAULT_AUTO_FIELD = 'django.db.models.BigAutoField'
`

const projectURLsPy = `"""
URL configuration for website project.

Examples:
Function views
    1. Add an import:  from my_app import views
"""
from django.contrib import admin
from django.urls import path, include

urlpatterns = [
    path('admin/', admin.site.urls),
    path('', include('blog.urls')),
]
`

const blogURLsPy = `from django.urls import path
from . import views

urlpatterns = [
    path('', views.index, name='index'),
    path('post/', views.post, name='post'),
    path('post/<int:pk>/', views.post, name='post-detail'),
]
`

const managePy = `#!/usr/bin/env python
import os
import sys


def main():
    os.environ.setdefault('DJANGO_SETTINGS_MODULE', 'website.settings')
`

// writeProject creates a Django project named website below a temp dir and
// returns its root. files overrides or adds files by relative path.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "website")
	all := map[string]string{
		"manage.py":           managePy,
		"website/__init__.py": "",
		"website/settings.py": settingsPy,
		"website/urls.py":     projectURLsPy,
		"blog/__init__.py":    "",
		"blog/urls.py":        blogURLsPy,
	}
	for k, v := range files {
		all[k] = v
	}
	for rel, content := range all {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}
